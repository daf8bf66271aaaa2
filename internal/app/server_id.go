package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// InstanceID 实例ID
// 优先使用环境变量 DIGIMESH_INSTANCE_ID，否则 digimeshd-{hostname}-{uuid前8位}
func InstanceID() string {
	if id := os.Getenv("DIGIMESH_INSTANCE_ID"); id != "" {
		return id
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("digimeshd-%s-%s", hostname, uuid.New().String()[:8])
}
