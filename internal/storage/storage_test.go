package storage

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/road-maintenance/internal/config"
)

func TestAttachmentKeyLayout(t *testing.T) {
	key := AttachmentKey(time.Date(2024, 5, 7, 23, 0, 0, 0, time.UTC), "crack photo.jpg")
	assert.Regexp(t, regexp.MustCompile(`^issues/attachments/2024/05/07/[0-9a-f-]{36}-crack_photo\.jpg$`), key)
}

func TestCleanFileName(t *testing.T) {
	assert.Equal(t, "report.pdf", CleanFileName("../../etc/report.pdf"))
	assert.Equal(t, "scan.png", CleanFileName(`C:\Users\me\scan.png`))
	assert.Equal(t, "file", CleanFileName(""))
	assert.Equal(t, "a_b.txt", CleanFileName("a b?.txt"))
	assert.Equal(t, "file", CleanFileName("?#%"))
}

func TestDisplayFileNameKeepsSpaces(t *testing.T) {
	assert.Equal(t, "site report.pdf", DisplayFileName("/tmp/site report.pdf"))
	assert.Equal(t, "scan.png", DisplayFileName("scan\x00.png"))
	assert.Equal(t, "file", DisplayFileName("  "))
}

func TestPublicBaseURL(t *testing.T) {
	assert.Equal(t, "https://cdn.city.gov/files",
		PublicBaseURL(config.StorageConfig{PublicURL: "https://cdn.city.gov/files/"}))
	assert.Equal(t, "http://127.0.0.1:9000/road",
		PublicBaseURL(config.StorageConfig{Endpoint: "127.0.0.1:9000", Bucket: "road"}))
	assert.Equal(t, "https://s3.local/road",
		PublicBaseURL(config.StorageConfig{Endpoint: "s3.local", Bucket: "road", UseSSL: true}))
}

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "http://h/b/issues/x.png", ObjectURL("http://h/b/", "/issues/x.png"))
}
