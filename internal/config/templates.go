package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		return clientTemplate, nil
	case "server":
		return serverTemplate, nil
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

const clientTemplate = `transport = "udp"
local_host = "127.0.0.1"
local_port = 10000
dest_host = "127.0.0.1"
send_port = 3001
listen_host = ""
recv_port = 3002
config_url = "http://localhost:8888/config"
tick = "1s"
`

const serverTemplate = `id = "ampm-server"
transport = "udp"
osc_receive_addr = ":3001"
osc_send_port = 3002
http_addr = ":8888"
config_path = "config.json"
kill_clients_after = "5s"
update_throttle = "16ms"
recent_logs = 50
cors_origins = ["http://localhost:3000"]
`
