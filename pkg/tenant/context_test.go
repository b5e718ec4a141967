package tenant_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantkit/pkg/tenant"
)

func TestFromContext(t *testing.T) {
	t.Parallel()

	t.Run("empty context has no tenant", func(t *testing.T) {
		t.Parallel()

		got, ok := tenant.FromContext(context.Background())
		assert.False(t, ok)
		assert.Nil(t, got)

		_, ok = tenant.IDFromContext(context.Background())
		assert.False(t, ok)
	})

	t.Run("must panics without tenant", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			tenant.MustFromContext(context.Background())
		})
	})

	t.Run("logger extractor", func(t *testing.T) {
		t.Parallel()

		extract := tenant.LoggerExtractor()
		_, ok := extract(context.Background())
		assert.False(t, ok)
	})
}

func TestSwitcherRun(t *testing.T) {
	t.Parallel()

	t.Run("binds tenant and handle for the operation", func(t *testing.T) {
		t.Parallel()

		pool := newFakePool()
		sw := tenant.NewSwitcher(pool)
		acme := newTestTenant("acme", tenant.StatusActive)

		err := sw.Run(context.Background(), acme, func(ctx context.Context) error {
			got := tenant.MustFromContext(ctx)
			assert.Equal(t, acme.ID, got.ID)

			id, ok := tenant.IDFromContext(ctx)
			require.True(t, ok)
			assert.Equal(t, acme.ID, id)

			_, ok = tenant.HandleFromContext(ctx)
			assert.True(t, ok)

			attr, ok := tenant.LoggerExtractor()(ctx)
			require.True(t, ok)
			assert.Equal(t, "tenant_id", attr.Key)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 0, pool.leaseBalance(acme.ID), "lease released")
	})

	t.Run("caller context keeps its previous tenant", func(t *testing.T) {
		t.Parallel()

		pool := newFakePool()
		sw := tenant.NewSwitcher(pool)
		acme := newTestTenant("acme", tenant.StatusActive)
		ctx := context.Background()

		err := sw.Run(ctx, acme, func(inner context.Context) error { return nil })
		require.NoError(t, err)

		_, ok := tenant.FromContext(ctx)
		assert.False(t, ok, "ambient context must stay untouched")
	})

	t.Run("nesting restores the enclosing tenant", func(t *testing.T) {
		t.Parallel()

		pool := newFakePool()
		sw := tenant.NewSwitcher(pool)
		outer := newTestTenant("outer", tenant.StatusActive)
		inner := newTestTenant("inner", tenant.StatusActive)

		err := sw.Run(context.Background(), outer, func(outerCtx context.Context) error {
			runErr := sw.Run(outerCtx, inner, func(innerCtx context.Context) error {
				assert.Equal(t, inner.ID, tenant.MustFromContext(innerCtx).ID)
				return nil
			})
			require.NoError(t, runErr)

			// Back in the outer operation, the outer tenant is current.
			assert.Equal(t, outer.ID, tenant.MustFromContext(outerCtx).ID)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 0, pool.leaseBalance(outer.ID))
		assert.Equal(t, 0, pool.leaseBalance(inner.ID))
	})

	t.Run("releases on error", func(t *testing.T) {
		t.Parallel()

		pool := newFakePool()
		sw := tenant.NewSwitcher(pool)
		acme := newTestTenant("acme", tenant.StatusActive)

		wantErr := errors.New("boom")
		err := sw.Run(context.Background(), acme, func(ctx context.Context) error {
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
		assert.Equal(t, 0, pool.leaseBalance(acme.ID))
	})

	t.Run("releases on panic and leaves ambient tenant untouched", func(t *testing.T) {
		t.Parallel()

		pool := newFakePool()
		sw := tenant.NewSwitcher(pool)
		acme := newTestTenant("acme", tenant.StatusActive)
		ctx := context.Background()

		assert.Panics(t, func() {
			_ = sw.Run(ctx, acme, func(context.Context) error {
				panic("handler exploded")
			})
		})

		assert.Equal(t, 0, pool.leaseBalance(acme.ID), "lease released despite panic")
		_, ok := tenant.FromContext(ctx)
		assert.False(t, ok)
	})

	t.Run("releases on context cancellation", func(t *testing.T) {
		t.Parallel()

		pool := newFakePool()
		sw := tenant.NewSwitcher(pool)
		acme := newTestTenant("acme", tenant.StatusActive)

		ctx, cancel := context.WithCancel(context.Background())
		err := sw.Run(ctx, acme, func(ctx context.Context) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, pool.leaseBalance(acme.ID))
	})

	t.Run("nil tenant is rejected", func(t *testing.T) {
		t.Parallel()

		sw := tenant.NewSwitcher(newFakePool())
		err := sw.Run(context.Background(), nil, func(context.Context) error { return nil })
		assert.ErrorIs(t, err, tenant.ErrNoTenantInContext)
	})

	t.Run("pool errors propagate without binding", func(t *testing.T) {
		t.Parallel()

		pool := newFakePool()
		pool.getErr = errors.New("pool exhausted")
		sw := tenant.NewSwitcher(pool)

		called := false
		err := sw.Run(context.Background(), newTestTenant("acme", tenant.StatusActive), func(context.Context) error {
			called = true
			return nil
		})
		assert.Error(t, err)
		assert.False(t, called)
	})
}

func TestSwitcherConcurrentRequests(t *testing.T) {
	t.Parallel()

	pool := newFakePool()
	sw := tenant.NewSwitcher(pool)

	tenants := []*tenant.Tenant{
		newTestTenant("a", tenant.StatusActive),
		newTestTenant("b", tenant.StatusActive),
		newTestTenant("c", tenant.StatusActive),
	}

	done := make(chan uuid.UUID, 60)
	for i := 0; i < 60; i++ {
		go func(i int) {
			want := tenants[i%len(tenants)]
			_ = sw.Run(context.Background(), want, func(ctx context.Context) error {
				// Each concurrent operation sees exactly its own tenant.
				got := tenant.MustFromContext(ctx)
				assert.Equal(t, want.ID, got.ID)
				done <- got.ID
				return nil
			})
		}(i)
	}
	for i := 0; i < 60; i++ {
		<-done
	}

	for _, tn := range tenants {
		assert.Equal(t, 0, pool.leaseBalance(tn.ID))
	}
}
