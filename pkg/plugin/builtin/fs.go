package builtin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/silk-runtime/silk/pkg/permission"
	"github.com/silk-runtime/silk/pkg/plugin"
	"github.com/silk-runtime/silk/pkg/router"
	"github.com/silk-runtime/silk/pkg/value"
)

// FS exposes text file access scoped by the policy's fs roots. The routing
// layer grants the fs namespace; the actual path containment check happens
// here, per request.
type FS struct{}

func (FS) Name() string { return "fs" }

func (FS) Routes(reg plugin.Registrar) {
	reg.RegisterGuarded("silk:fs/readText", "fs", readText)
	reg.RegisterGuarded("silk:fs/writeText", "fs", writeText)
}

func readText(ctx *router.Context, args value.Value) (value.Value, error) {
	path, err := pathArg(args)
	if err != nil {
		return value.Null(), err
	}
	if !ctx.Policy.AllowsPath(path, permission.ReadPath) {
		return value.Null(), pathDenied(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return value.Null(), fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return value.String(string(data)), nil
}

func writeText(ctx *router.Context, args value.Value) (value.Value, error) {
	path, err := pathArg(args)
	if err != nil {
		return value.Null(), err
	}
	textVal, ok := args.Get("text")
	if !ok {
		return value.Null(), errors.New("MissingText: text argument is required")
	}
	text, ok := textVal.AsString()
	if !ok {
		return value.Null(), errors.New("MissingText: text argument must be a string")
	}
	if !ctx.Policy.AllowsPath(path, permission.WritePath) {
		return value.Null(), pathDenied(path)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return value.Null(), fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return value.Null(), nil
}

func pathArg(args value.Value) (string, error) {
	pathVal, ok := args.Get("path")
	if !ok {
		return "", errors.New("MissingPath: path argument is required")
	}
	path, ok := pathVal.AsString()
	if !ok || path == "" {
		return "", errors.New("MissingPath: path argument must be a non-empty string")
	}
	return path, nil
}

func pathDenied(path string) error {
	return &router.CodedError{
		Code:    "PATH_DENIED",
		Message: "Path not allowed by permissions: " + path,
	}
}
