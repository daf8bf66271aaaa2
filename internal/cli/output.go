package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// render 按 -o 输出结构化结果；text 模式调用 text 回调
func render(w io.Writer, format string, v any, text func(w io.Writer)) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "", "text":
		text(w)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
