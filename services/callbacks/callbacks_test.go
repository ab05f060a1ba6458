// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package callbacks

import (
	"context"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/test/builders"
	"github.com/orbs-network/diamond-deployer/test/with"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"testing"
)

func recording(calls *[]string, name string, err error) Callback {
	return func(ctx context.Context, args *Args) error {
		*calls = append(*calls, args.Facet+"."+name)
		return err
	}
}

func TestRegister_ValidatesRegistrations(t *testing.T) {
	r := NewRegistry()
	var calls []string

	require.NoError(t, r.Register("ERC20", map[string]Callback{"seed": recording(&calls, "seed", nil)}))
	require.Error(t, r.Register("ERC20", map[string]Callback{"seed": recording(&calls, "seed", nil)}), "duplicate name")
	require.Error(t, r.Register("", map[string]Callback{"x": recording(&calls, "x", nil)}))
	require.Error(t, r.Register("ERC20", map[string]Callback{" ": recording(&calls, "x", nil)}))
	require.Error(t, r.Register("ERC20", map[string]Callback{"nil": nil}))

	require.Equal(t, []string{"ERC20"}, r.Facets())
	_, found := r.Lookup("ERC20", "seed")
	require.True(t, found)

	r.Clear()
	require.Empty(t, r.Facets())
}

func TestMissing_ListsUnregisteredDeclarations(t *testing.T) {
	r := NewRegistry()
	var calls []string
	require.NoError(t, r.Register("ERC20", map[string]Callback{"seed": recording(&calls, "seed", nil)}))

	desired := builders.DesiredConfiguration().
		WithProtocolInit("", "announce").
		WithFacet("ERC20", builders.Facet().
			WithVersion("0", builders.Version().Callbacks("seed", "mint")).
			WithVersion("1", builders.Version().From(0).Callbacks("mint"))).
		Build()

	require.Equal(t, []string{ProtocolScope + ".announce", "ERC20.mint"}, r.Missing(desired))
}

func TestDispatch_RunsCallbacksInDeclaredOrder(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		r := NewRegistry()
		var calls []string
		require.NoError(t, r.Register("ERC20", map[string]Callback{
			"first":  recording(&calls, "first", nil),
			"second": recording(&calls, "second", nil),
		}))

		executed, err := NewDispatcher(r, harness.Logger).Dispatch(harness.Ctx, "ERC20", []string{"second", "first"}, &Args{Facet: "ERC20"})
		require.NoError(t, err)
		require.Equal(t, []string{"second", "first"}, executed)
		require.Equal(t, []string{"ERC20.second", "ERC20.first"}, calls)
	})
}

func TestDispatch_StopsAtTheFirstMissingCallback(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		r := NewRegistry()
		var calls []string
		require.NoError(t, r.Register("ERC20", map[string]Callback{"seed": recording(&calls, "seed", nil)}))

		executed, err := NewDispatcher(r, harness.Logger).Dispatch(harness.Ctx, "ERC20", []string{"seed", "missing", "seed"}, &Args{Facet: "ERC20"})
		require.Equal(t, []string{"seed"}, executed)
		require.True(t, diamond.IsKind(err, diamond.CallbackNotFound))
	})
}

func TestDispatch_FailingAndPanickingCallbacksAreReported(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		r := NewRegistry()
		require.NoError(t, r.Register("ERC20", map[string]Callback{
			"fails": func(ctx context.Context, args *Args) error {
				return errors.New("reverted")
			},
			"panics": func(ctx context.Context, args *Args) error {
				panic("boom")
			},
		}))
		d := NewDispatcher(r, harness.Logger)

		_, err := d.Dispatch(harness.Ctx, "ERC20", []string{"fails"}, &Args{Facet: "ERC20"})
		require.True(t, diamond.IsKind(err, diamond.CallbackExecutionFailed))
		require.Contains(t, err.Error(), "reverted")

		_, err = d.Dispatch(harness.Ctx, "ERC20", []string{"panics"}, &Args{Facet: "ERC20"})
		require.True(t, diamond.IsKind(err, diamond.CallbackExecutionFailed))
		require.Contains(t, err.Error(), "boom")
	})
}

func TestDispatch_GivesCallbacksALogger(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		r := NewRegistry()
		var sawLogger bool
		require.NoError(t, r.Register("ERC20", map[string]Callback{
			"log": func(ctx context.Context, args *Args) error {
				sawLogger = args.Logger != nil
				return nil
			},
		}))

		_, err := NewDispatcher(r, harness.Logger).Dispatch(harness.Ctx, "ERC20", []string{"log"}, &Args{Facet: "ERC20"})
		require.NoError(t, err)
		require.True(t, sawLogger)
	})
}
