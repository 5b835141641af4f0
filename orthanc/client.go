// Package orthanc is a minimal client for the subset of the Orthanc REST
// API needed to bulk-import DICOM instances: listing and deleting studies,
// creating instances, and fetching an instance's tags in short form.
package orthanc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/carbocation/pfx"
)

const contentTypeDICOM = "application/dicom"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
}

// Instance describes one stored instance as returned by POST /instances.
type Instance struct {
	ID            string `json:"ID"`
	ParentPatient string `json:"ParentPatient"`
	ParentSeries  string `json:"ParentSeries"`
	ParentStudy   string `json:"ParentStudy"`
	Status        string `json:"Status"`
}

// UploadError is returned by PostInstance when Orthanc rejects the upload.
// Body holds the raw JSON error body from the server.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("orthanc rejected instance (status %d): %s", e.StatusCode, e.Body)
}

// ListStudies returns the Orthanc IDs of every study on the server.
func (c *Client) ListStudies() ([]string, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/studies")
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, pfx.Err(fmt.Errorf("listing studies: unexpected status %d", resp.StatusCode))
	}

	var studies []string
	if err := json.NewDecoder(resp.Body).Decode(&studies); err != nil {
		return nil, pfx.Err(err)
	}

	return studies, nil
}

func (c *Client) DeleteStudy(id string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/studies/"+id, nil)
	if err != nil {
		return pfx.Err(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pfx.Err(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pfx.Err(fmt.Errorf("deleting study %s: unexpected status %d", id, resp.StatusCode))
	}

	return nil
}

// PostInstance uploads one DICOM file. A non-2xx response yields an
// *UploadError so the caller can distinguish a server-side rejection from
// transport failures.
func (c *Client) PostInstance(data []byte) (*Instance, error) {
	resp, err := c.httpClient.Post(c.baseURL+"/instances", contentTypeDICOM, bytes.NewReader(data))
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UploadError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var instance Instance
	if err := json.NewDecoder(resp.Body).Decode(&instance); err != nil {
		return nil, pfx.Err(err)
	}

	return &instance, nil
}

// InstanceTagsShort fetches an instance's tags keyed by abbreviated tag
// codes (e.g. "0010,0020" for the patient ID).
func (c *Client) InstanceTagsShort(id string) (map[string]string, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/instances/" + id + "/tags?short")
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, pfx.Err(fmt.Errorf("fetching tags for instance %s: unexpected status %d", id, resp.StatusCode))
	}

	var tags map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, pfx.Err(err)
	}

	return tags, nil
}
