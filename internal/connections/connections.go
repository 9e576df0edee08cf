// Package connections manages saved endpoint connections. Connection
// metadata (name, endpoint, region) is stored in a local SQLite database;
// credentials live in an external secret store and are never persisted
// alongside the metadata.
package connections

import "time"

// Connection is a saved endpoint connection. AccessKey and SecretKey are
// only populated when the connection is loaded for use.
type Connection struct {
	Name     string
	Endpoint string
	Region   string

	AccessKey string
	SecretKey string

	CreatedAt time.Time
}

// CommonEndpoints lists well-known S3-compatible endpoints for quick setup.
var CommonEndpoints = map[string]string{
	"Linode (Atlanta)":        "https://us-southeast-1.linodeobjects.com",
	"Linode (Newark)":         "https://us-east-1.linodeobjects.com",
	"Linode (Frankfurt)":      "https://eu-central-1.linodeobjects.com",
	"Linode (Singapore)":      "https://ap-south-1.linodeobjects.com",
	"AWS S3 (us-east-1)":      "https://s3.us-east-1.amazonaws.com",
	"AWS S3 (us-west-2)":      "https://s3.us-west-2.amazonaws.com",
	"DigitalOcean (NYC3)":     "https://nyc3.digitaloceanspaces.com",
	"DigitalOcean (SFO3)":     "https://sfo3.digitaloceanspaces.com",
	"Backblaze B2 (us-west)":  "https://s3.us-west-004.backblazeb2.com",
	"MinIO (local)":           "http://localhost:9000",
	"Cloudflare R2":           "https://<account_id>.r2.cloudflarestorage.com",
}
