package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/partscout/partscout/internal/logging"
	"github.com/partscout/partscout/internal/models"
)

type fakeS3 struct {
	objects map[string][]byte
	puts    []s3.PutObjectInput
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = body
	f.puts = append(f.puts, *params)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(params.Key)]; ok {
		return &s3.HeadObjectOutput{}, nil
	}
	return nil, &s3types.NotFound{}
}

func newTestArchiver(client *fakeS3) *S3Archiver {
	return &S3Archiver{
		client: client,
		http:   &http.Client{Timeout: 5 * time.Second},
		bucket: "parts-files",
		prefix: "datasheets",
		logger: logging.New(logging.LevelError),
	}
}

func TestArchive_UploadsFile(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake datasheet"))
	}))
	defer server.Close()

	client := newFakeS3()
	a := newTestArchiver(client)

	file := models.File{URL: server.URL + "/docs/ne555.pdf", Name: "NE555 Datasheet"}
	if err := a.Archive(context.Background(), "lcsc", file); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	if len(client.puts) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(client.puts))
	}
	put := client.puts[0]
	key := aws.ToString(put.Key)
	if !strings.HasPrefix(key, "datasheets/lcsc/") {
		t.Errorf("unexpected key %q", key)
	}
	if !strings.HasSuffix(key, "/NE555_Datasheet") {
		t.Errorf("filename not preserved in key %q", key)
	}
	if got := aws.ToString(put.ContentType); got != "application/pdf" {
		t.Errorf("unexpected content type %q", got)
	}
	if put.Metadata["source-url"] != file.URL {
		t.Errorf("source url metadata missing: %v", put.Metadata)
	}
	if string(client.objects[key]) != "%PDF-1.4 fake datasheet" {
		t.Error("uploaded body does not match the download")
	}
}

func TestArchive_SkipsExistingObject(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("pdf bytes"))
	}))
	defer server.Close()

	client := newFakeS3()
	a := newTestArchiver(client)
	file := models.File{URL: server.URL + "/ds.pdf"}

	for i := 0; i < 3; i++ {
		if err := a.Archive(context.Background(), "mouser", file); err != nil {
			t.Fatalf("Archive failed: %v", err)
		}
	}

	if requests != 1 {
		t.Errorf("expected 1 download, got %d", requests)
	}
	if len(client.puts) != 1 {
		t.Errorf("expected 1 upload, got %d", len(client.puts))
	}
}

func TestArchive_EmptyURLIsNoop(t *testing.T) {
	client := newFakeS3()
	a := newTestArchiver(client)
	if err := a.Archive(context.Background(), "lcsc", models.File{Name: "no url"}); err != nil {
		t.Fatalf("empty url must be a no-op: %v", err)
	}
	if len(client.puts) != 0 {
		t.Error("nothing should be uploaded for an empty url")
	}
}

func TestArchive_UpstreamErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newFakeS3()
	a := newTestArchiver(client)
	err := a.Archive(context.Background(), "lcsc", models.File{URL: server.URL + "/gone.pdf"})
	if err == nil {
		t.Fatal("expected an error for a failed download")
	}
	if len(client.puts) != 0 {
		t.Error("nothing should be uploaded on download failure")
	}
}

func TestObjectKey(t *testing.T) {
	a := &S3Archiver{prefix: "datasheets"}

	tests := []struct {
		name string
		file models.File
		want string
	}{
		{"name from file", models.File{URL: "https://x.test/a.pdf", Name: "My Sheet.pdf"}, "My_Sheet.pdf"},
		{"name from url path", models.File{URL: "https://x.test/docs/lm358.pdf"}, "lm358.pdf"},
		{"no usable name", models.File{URL: "https://x.test/"}, "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := a.objectKey("lcsc", tt.file)
			if !strings.HasSuffix(key, "/"+tt.want) {
				t.Errorf("key %q does not end in %q", key, tt.want)
			}
			if !strings.HasPrefix(key, "datasheets/lcsc/") {
				t.Errorf("key %q missing prefix", key)
			}
		})
	}

	stable := a.objectKey("lcsc", models.File{URL: "https://x.test/a.pdf"})
	again := a.objectKey("lcsc", models.File{URL: "https://x.test/a.pdf"})
	if stable != again {
		t.Error("keys must be stable per source url")
	}
}
