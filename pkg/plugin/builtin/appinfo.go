package builtin

import (
	"runtime"

	"github.com/silk-runtime/silk/pkg/plugin"
	"github.com/silk-runtime/silk/pkg/router"
	"github.com/silk-runtime/silk/pkg/value"
)

// AppInfo reports the hosting application's identity to the page.
type AppInfo struct {
	AppName string
	Version string
}

func (AppInfo) Name() string { return "appinfo" }

func (p AppInfo) Routes(reg plugin.Registrar) {
	reg.Register("silk:appInfo", func(_ *router.Context, _ value.Value) (value.Value, error) {
		return value.Object(
			value.Member{Key: "name", Value: value.String(p.AppName)},
			value.Member{Key: "version", Value: value.String(p.Version)},
			value.Member{Key: "os", Value: value.String(runtime.GOOS)},
			value.Member{Key: "arch", Value: value.String(runtime.GOARCH)},
		), nil
	})
}
