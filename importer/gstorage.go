package importer

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// importGoogleStorageObject streams one gs://bucket/object input through
// the decoder dispatch. Remote objects are always treated as single files;
// there is no directory expansion for buckets.
func (imp *Importer) importGoogleStorageObject(path string) error {
	pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
	if len(pathParts) != 2 {
		return fmt.Errorf("malformed google storage path: %s", path)
	}
	bucketName, objectName := pathParts[0], pathParts[1]

	ctx := context.Background()

	// The client is created on first use so that runs without gs://
	// arguments never touch Google credentials.
	if imp.gsClient == nil {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return pfx.Err(err)
		}
		imp.gsClient = client
	}

	reader, err := imp.gsClient.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		return pfx.Err(fmt.Errorf("%s: %v", path, err))
	}
	defer reader.Close()

	return imp.decodeStream(path, reader)
}
