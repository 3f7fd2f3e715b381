package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/datametry/edr/alert"
	"github.com/stretchr/testify/require"
)

func ids(n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("id-%d", i))
	}
	return out
}

func TestRepository_MarkSentChunks(t *testing.T) {
	eng := &fakeEngine{}
	repo := NewRepository(eng, NewProperties())

	all := ids(120)
	require.NoError(t, repo.MarkSent(context.Background(), all))

	chunks := eng.markSentChunks()
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 50)
	require.Len(t, chunks[1], 50)
	require.Len(t, chunks[2], 20)

	var joined []string
	for _, c := range chunks {
		joined = append(joined, c...)
	}
	require.Equal(t, all, joined)
}

func TestRepository_MarkSentEmpty(t *testing.T) {
	eng := &fakeEngine{}
	repo := NewRepository(eng, NewProperties())
	require.NoError(t, repo.MarkSent(context.Background(), nil))
	require.Empty(t, eng.calls)
}

func TestRepository_MarkSentStopsOnFailedChunk(t *testing.T) {
	var attempts int
	eng := &fakeEngine{
		rowsFn: func(ctx context.Context, name string, args map[string]any) ([]string, error) {
			attempts++
			if attempts == 2 {
				return nil, errors.New("warehouse unavailable")
			}
			return nil, nil
		},
	}
	repo := NewRepository(eng, NewProperties())

	err := repo.MarkSent(context.Background(), ids(120))
	require.Error(t, err)
	require.True(t, IsMarkSentError(err))

	var mse *MarkSentError
	require.ErrorAs(t, err, &mse)
	require.Equal(t, 1, mse.Chunk)
	require.Equal(t, 50, mse.Confirmed)
	require.EqualError(t, mse.Err, "warehouse unavailable")
	require.Len(t, eng.markSentChunks(), 2)
}

func TestRepository_FetchNewAlerts(t *testing.T) {
	eng := &fakeEngine{
		rowsFn: func(ctx context.Context, name string, args map[string]any) ([]string, error) {
			require.Equal(t, getNewAlertsOperation, name)
			require.Equal(t, map[string]any{"days_back": 3}, args)
			return []string{alertRow("b"), alertRow("a")}, nil
		},
	}
	props := NewProperties()
	repo := NewRepository(eng, props)

	alerts, err := repo.FetchNewAlerts(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	require.Equal(t, "b", alerts[0].ID)
	require.Equal(t, "a", alerts[1].ID)

	rows, _ := props.Get(PropAlertRows)
	require.Equal(t, 2, rows)
}

func TestRepository_FetchNewAlertsMalformedRow(t *testing.T) {
	eng := &fakeEngine{
		rowsFn: func(ctx context.Context, name string, args map[string]any) ([]string, error) {
			return []string{alertRow("a"), `{"alert_id": "b", "detected_at": `, alertRow("c")}, nil
		},
	}
	props := NewProperties()
	repo := NewRepository(eng, props)

	alerts, err := repo.FetchNewAlerts(context.Background(), 7)
	require.Error(t, err)
	require.Nil(t, alerts)
	require.Contains(t, err.Error(), "alert row 1")

	var pe *alert.ParseError
	require.ErrorAs(t, err, &pe)

	rows, _ := props.Get(PropAlertRows)
	require.Equal(t, 3, rows)
}

func TestRepository_FetchNewAlertsInvalidDaysBack(t *testing.T) {
	eng := &fakeEngine{}
	repo := NewRepository(eng, NewProperties())

	_, err := repo.FetchNewAlerts(context.Background(), 0)
	require.Error(t, err)
	require.Empty(t, eng.calls)
}

func TestRepository_FetchNewAlertsOperationError(t *testing.T) {
	eng := &fakeEngine{
		rowsFn: func(ctx context.Context, name string, args map[string]any) ([]string, error) {
			return nil, errors.New("boom")
		},
	}
	repo := NewRepository(eng, NewProperties())

	_, err := repo.FetchNewAlerts(context.Background(), 7)
	require.ErrorContains(t, err, "query new alerts: boom")
}
