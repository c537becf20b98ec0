package service

import (
	"context"
	"errors"
	"testing"

	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoAction(name string, params ...output.ActionParam) output.ActionDescriptor {
	return output.ActionDescriptor{
		Name:        name,
		Description: "echo " + name,
		Parameters:  params,
		OutputType:  "map",
		Handler: func(_ context.Context, _ output.ActionContext, args map[string]any) (any, error) {
			return args, nil
		},
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := NewActionRegistry()
	require.NoError(t, r.Register(echoAction("a")))

	err := r.Register(echoAction("a"))
	assert.ErrorIs(t, err, entity.ErrDuplicateAction)
	assert.Equal(t, []string{"a"}, r.Names())
}

func TestRegister_Invalid(t *testing.T) {
	r := NewActionRegistry()
	assert.Error(t, r.Register(echoAction(" ")))

	desc := echoAction("nil")
	desc.Handler = nil
	assert.Error(t, r.Register(desc))
}

func TestMustRegister_Panics(t *testing.T) {
	r := NewActionRegistry()
	assert.Panics(t, func() { r.MustRegister(echoAction("a"), echoAction("a")) })
}

func TestListForPrompt_Deterministic(t *testing.T) {
	build := func() *ActionRegistryImpl {
		r := NewActionRegistry()
		r.MustRegister(
			echoAction("write_file",
				output.ActionParam{Name: "file_path", Type: "string", Required: true, Description: "Path"},
				output.ActionParam{Name: "data", Type: "string", Required: false, Description: "Body"},
			),
			echoAction("finish"),
		)
		return r
	}

	first := build().ListForPrompt()
	assert.Equal(t, first, build().ListForPrompt())
	assert.Equal(t,
		"- write_file: echo write_file\n"+
			"  args: file_path: string (required) - Path; data: string (optional) - Body\n"+
			"  output: map\n"+
			"- finish: echo finish\n"+
			"  args: none\n"+
			"  output: map",
		first)
}

func TestDescriptors_AreCopies(t *testing.T) {
	r := NewActionRegistry()
	r.MustRegister(echoAction("a", output.ActionParam{Name: "x", Type: "string"}))

	descs := r.Descriptors()
	descs[0].Parameters[0].Name = "changed"

	assert.Equal(t, "x", r.Descriptors()[0].Parameters[0].Name)
}

func TestDispatch(t *testing.T) {
	r := NewActionRegistry()
	r.MustRegister(echoAction("a",
		output.ActionParam{Name: "req", Type: "string", Required: true},
		output.ActionParam{Name: "opt", Type: "string"},
	))
	ctx := context.Background()

	t.Run("unknown", func(t *testing.T) {
		_, err := r.Dispatch(ctx, output.ActionContext{}, "missing", nil)
		assert.ErrorIs(t, err, entity.ErrUnknownAction)
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := r.Dispatch(ctx, output.ActionContext{}, "a", map[string]any{"opt": "x"})
		assert.ErrorIs(t, err, entity.ErrInvalidArgument)
	})

	t.Run("null required", func(t *testing.T) {
		_, err := r.Dispatch(ctx, output.ActionContext{}, "a", map[string]any{"req": nil})
		assert.ErrorIs(t, err, entity.ErrInvalidArgument)
	})

	t.Run("extra keys dropped", func(t *testing.T) {
		out, err := r.Dispatch(ctx, output.ActionContext{}, "a", map[string]any{"req": "v", "extra": 1})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"req": "v"}, out)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := r.Dispatch(cctx, output.ActionContext{}, "a", map[string]any{"req": "v"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDispatch_HandlerErrorsAndPanics(t *testing.T) {
	boom := errors.New("boom")
	r := NewActionRegistry()
	r.MustRegister(
		output.ActionDescriptor{Name: "fails", Handler: func(context.Context, output.ActionContext, map[string]any) (any, error) {
			return nil, boom
		}},
		output.ActionDescriptor{Name: "panics", Handler: func(context.Context, output.ActionContext, map[string]any) (any, error) {
			panic("kaput")
		}},
	)

	_, err := r.Dispatch(context.Background(), output.ActionContext{}, "fails", nil)
	assert.ErrorIs(t, err, boom)

	out, err := r.Dispatch(context.Background(), output.ActionContext{}, "panics", nil)
	assert.Nil(t, out)
	assert.ErrorContains(t, err, `action "panics" panicked: kaput`)
}
