package builtin

import (
	"bytes"
	"errors"
	"os/exec"

	"github.com/silk-runtime/silk/pkg/plugin"
	"github.com/silk-runtime/silk/pkg/router"
	"github.com/silk-runtime/silk/pkg/value"
)

// Shell spawns allowed programs. The shell namespace is not granted by the
// default policy; configuration must opt in.
type Shell struct{}

func (Shell) Name() string { return "shell" }

func (Shell) Routes(reg plugin.Registrar) {
	reg.RegisterGuarded("silk:shell/exec", "shell", execProgram)
}

func execProgram(ctx *router.Context, args value.Value) (value.Value, error) {
	programVal, ok := args.Get("program")
	if !ok {
		return value.Null(), errors.New("MissingProgram: program argument is required")
	}
	program, ok := programVal.AsString()
	if !ok || program == "" {
		return value.Null(), errors.New("MissingProgram: program argument must be a non-empty string")
	}
	if !ctx.Policy.AllowsProgram(program) {
		return value.Null(), &router.CodedError{
			Code:    "PROGRAM_DENIED",
			Message: "Program not allowed by permissions: " + program,
		}
	}

	var argv []string
	if listVal, ok := args.Get("args"); ok {
		items, isArr := listVal.AsArray()
		if !isArr {
			return value.Null(), errors.New("InvalidArgs: args must be an array of strings")
		}
		for _, item := range items {
			s, isStr := item.AsString()
			if !isStr {
				return value.Null(), errors.New("InvalidArgs: args must be an array of strings")
			}
			argv = append(argv, s)
		}
	}

	cmd := exec.CommandContext(ctx.Ctx, program, argv...)
	if dirVal, ok := args.Get("dir"); ok {
		if dir, isStr := dirVal.AsString(); isStr && dir != "" {
			cmd.Dir = dir
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	code := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			return value.Null(), err
		}
	}

	return value.Object(
		value.Member{Key: "code", Value: value.Int(int64(code))},
		value.Member{Key: "stdout", Value: value.String(stdout.String())},
		value.Member{Key: "stderr", Value: value.String(stderr.String())},
	), nil
}
