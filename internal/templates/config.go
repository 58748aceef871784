package templates

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrConfigExists = errors.New("config file already exists")

const configTemplate = `# bg-remover configuration. Every key can also be set with a BGR_ prefixed
# environment variable, e.g. BGR_SEGMENTER_URL. PORT and ENVIRONMENT are read
# without the prefix.
port: 8000
host: 0.0.0.0
environment: development
require_api_key: false

limits:
  max_upload_bytes: 2097152
  max_heuristic_upload_bytes: 3145728
  max_dimension: 800
  # decoded width x height above this is rejected before decoding
  max_pixels: 40000000
  brightness_threshold: 200

segmenter:
  backend: rembg
  url: http://127.0.0.1:7000
  model: u2net
  timeout: 60s

cors:
  allow_origins: ["*"]

archive:
  enabled: false
  workers: 4
  filesystem_type: local
  assets_dir: ./data/assets
  public_url: http://localhost:8000

db:
  driver: sqlite
  dsn: file:./data/main.db

s3:
  endpoint_url: ""
  region_name: ""
  bucket_name: ""
  folder: "bg-remover"
  vanity_url: ""
`

func GetConfigTemplate() string {
	return configTemplate
}

// WriteConfig writes the template to path. An existing file is only replaced
// when overwrite is set.
func WriteConfig(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.WriteString(GetConfigTemplate()); err != nil {
		return err
	}

	return nil
}
