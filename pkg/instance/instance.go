package instance

import "os"

// GetID returns the identifier of this process instance: the platform dyno name, then the
// host name, then "local".
func GetID() string {
	for _, key := range []string{"DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
