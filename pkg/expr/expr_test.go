package expr_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ratio1/odata_sdk_go/pkg/expr"
)

type userScope struct {
	UserID string
}

func TestResolveLiteral(t *testing.T) {
	v := expr.Literal("Status eq 'Open'")
	assert.True(t, v.IsSet())
	assert.False(t, v.IsDeferred())
	assert.Equal(t, "Status eq 'Open'", expr.Resolve(v, nil))
}

func TestResolveDeferredUsesScopeAndArgs(t *testing.T) {
	v := expr.Deferred(func(scope any, args ...any) string {
		s := scope.(*userScope)
		return fmt.Sprintf("OwnerId eq '%s' and Page eq %v", s.UserID, args[0])
	})

	scope := &userScope{UserID: "U1"}
	assert.Equal(t, "OwnerId eq 'U1' and Page eq 2", expr.Resolve(v, scope, 2))

	scope.UserID = "U2"
	assert.Equal(t, "OwnerId eq 'U2' and Page eq 3", expr.Resolve(v, scope, 3))
}

func TestZeroValue(t *testing.T) {
	var v expr.Value[[]string]
	assert.False(t, v.IsSet())
	assert.Nil(t, expr.Resolve(v, nil))

	assert.False(t, expr.Deferred[int](nil).IsSet())
}

func TestOr(t *testing.T) {
	var unset expr.Value[string]
	fallback := expr.Literal("accounts")
	assert.Equal(t, "accounts", expr.Resolve(unset.Or(fallback), nil))
	assert.Equal(t, "contacts", expr.Resolve(expr.Literal("contacts").Or(fallback), nil))
}
