package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitewise/inspection-exporter/internal/export"
)

func TestPublishRecordsEvents(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(context.Background(), "export.completed", export.Event{
		ID:         "audit-1",
		ReportType: export.ReportFacade,
		Outcome:    export.OutcomeSucceeded,
	})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	events := p.Events()
	require.Len(t, events, 1)
	require.Equal(t, "export.completed", events[0].Topic)
	require.Equal(t, "audit-1", events[0].Event.ID)
	require.Equal(t, export.ReportFacade, events[0].Event.ReportType)
}
