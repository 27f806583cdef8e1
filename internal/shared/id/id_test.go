package id

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{ListenerPrefix, SubscriptionPrefix} {
		got := gen.GenerateWithPrefix(prefix)
		require.True(t, strings.HasPrefix(got, prefix+"_"), got)

		parts := strings.SplitN(got, "_", 2)
		assert.True(t, IsValid(parts[1]), "ULID part should parse: %s", parts[1])
	}
}

func TestTypedIDs(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewListenerID().String(), "lsn_"))
	assert.True(t, strings.HasPrefix(NewSubscriptionID().String(), "sub_"))

	_, err := uuid.Parse(NewRequestID().String())
	assert.NoError(t, err)
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()
	seen := sync.Map{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, dup := seen.LoadOrStore(gen.Generate().String(), struct{}{})
				assert.False(t, dup)
			}
		}()
	}
	wg.Wait()
}
