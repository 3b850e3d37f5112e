package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/tzspd/pkg/plugin"
)

func TestBuiltinActionsRegistered(t *testing.T) {
	assert.Equal(t, []string{"hep", "kafka", "log", "require_parsed", "sip"}, plugin.ListActions())

	for _, name := range plugin.ListActions() {
		factory, err := plugin.GetActionFactory(name)
		require.NoError(t, err)
		assert.Equal(t, name, factory().Name())
	}
}
