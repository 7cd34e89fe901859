package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		return serverTemplate, nil
	case "query":
		return queryTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const serverTemplate = `name = "nsmapd"
listen_addr = "inet:127.0.0.1:9760"
admin_listen_addr = "127.0.0.1:9761"
admin_token = ""
cors_origins = ["http://localhost:3000"]
security_mode = "development"
max_request_len = 100000
read_timeout = "15s"
write_timeout = "15s"
lookup_timeout = "5s"
heartbeat_interval = "30s"

[tls]
enabled = false
mutual = false
cert_file = ""
key_file = ""
ca_file = ""

[[maps]]
name = "aliases"
kind = "static"
path = "/etc/nsmapd/aliases.map"

[[maps]]
name = "transport"
kind = "pebble"
path = "/var/lib/nsmapd/transport.db"
cache_max_entries = 1024
cache_ttl = "5m"

[[maps]]
name = "policy"
kind = "http"
url = "http://127.0.0.1:8080/lookup"
bearer_token = ""
request_timeout = "5s"
`

const queryTemplate = `default_target = "local"

[[targets]]
name = "local"
addr = "inet:127.0.0.1:9760"

[[targets]]
name = "remote"
addr = "inet:mail.example.com:9760"

[targets.tls]
enabled = true
ca_file = "/etc/nsmapd/ca.pem"
server_name = "mail.example.com"
`
