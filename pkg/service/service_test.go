package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/datametry/edr/pkg/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type fakeComponent struct {
	name     string
	openErr  error
	closeErr error
	events   *[]string
}

func (f *fakeComponent) Open(ctx context.Context) error {
	*f.events = append(*f.events, "open "+f.name)
	return f.openErr
}

func (f *fakeComponent) Close() error {
	*f.events = append(*f.events, "close "+f.name)
	return f.closeErr
}

func TestGroup_OpenCloseOrder(t *testing.T) {
	var events []string
	g := service.Group{
		&fakeComponent{name: "a", events: &events},
		&fakeComponent{name: "b", events: &events},
	}

	require.NoError(t, g.Open(context.Background()))
	require.NoError(t, g.Close())
	require.Equal(t, []string{"open a", "open b", "close b", "close a"}, events)
}

func TestGroup_OpenFailureClosesOpened(t *testing.T) {
	var events []string
	g := service.Group{
		&fakeComponent{name: "a", events: &events},
		&fakeComponent{name: "b", openErr: errors.New("bind"), events: &events},
		&fakeComponent{name: "c", events: &events},
	}

	err := g.Open(context.Background())
	require.ErrorContains(t, err, "bind")
	require.Equal(t, []string{"open a", "open b", "close a"}, events)
}

func TestGroup_CloseCombinesErrors(t *testing.T) {
	var events []string
	g := service.Group{
		&fakeComponent{name: "a", closeErr: errors.New("a failed"), events: &events},
		&fakeComponent{name: "b", closeErr: errors.New("b failed"), events: &events},
	}

	err := g.Close()
	require.Len(t, multierr.Errors(err), 2)
}
