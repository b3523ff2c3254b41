package trim_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/stemma-project/stemma/internal/stemma/graph"
	"gitlab.com/stemma-project/stemma/internal/stemma/trim"
)

func TestNotifier(t *testing.T) {
	t.Parallel()

	notifier := trim.NewNotifier()
	minter := graph.NewMinter()

	event := trim.Event{
		Revisions: []graph.RevisionTag{minter.Mint(), minter.Mint()},
		NewTail:   minter.Mint(),
	}

	t.Run("notifying without subscribers", func(t *testing.T) {
		notifier.Notify(event)
	})

	var order []string
	first := notifier.Subscribe(func(received trim.Event) {
		require.Equal(t, event, received)
		order = append(order, "first")
	})
	notifier.Subscribe(func(trim.Event) {
		order = append(order, "second")
	})

	notifier.Notify(event)
	require.Equal(t, []string{"first", "second"}, order, "subscribers run in subscription order")

	t.Run("unsubscribing", func(t *testing.T) {
		first()
		first()

		order = order[:0]
		notifier.Notify(event)
		require.Equal(t, []string{"second"}, order)
	})

	t.Run("subscribers added during dispatch see later events only", func(t *testing.T) {
		delivered := 0
		var unsubscribe func()
		unsubscribe = notifier.Subscribe(func(trim.Event) {
			notifier.Subscribe(func(trim.Event) { delivered++ })
			unsubscribe()
		})

		notifier.Notify(event)
		require.Zero(t, delivered)

		notifier.Notify(event)
		require.Equal(t, 1, delivered)
	})
}
