package dataset

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreStartsEmpty(t *testing.T) {
	s := NewStore()

	table := s.Current()
	require.NotNil(t, table)
	require.True(t, table.Empty())
	require.Empty(t, table.Columns())
}

func TestStoreReplace(t *testing.T) {
	s := NewStore()

	next := NewTable([]string{"DNI"}, []Row{{"DNI": {Kind: KindText, Text: "1"}}})
	s.Replace(next)

	require.Same(t, next, s.Current())
	require.Equal(t, 1, s.Current().Len())
}

func TestStoreSnapshotSurvivesReplace(t *testing.T) {
	s := NewStore()
	first := NewTable([]string{"A"}, []Row{{"A": {Kind: KindText, Text: "old"}}})
	s.Replace(first)

	snapshot := s.Current()
	s.Replace(NewTable([]string{"B"}, nil))

	// A reader holding the old snapshot still sees a coherent table.
	require.Equal(t, []string{"A"}, snapshot.Columns())
	require.Equal(t, "old", snapshot.Rows()[0]["A"].Text)
}

func TestStoreConcurrentReadersAndWriter(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				table := s.Current()
				// Every observed table must be internally consistent.
				for _, row := range table.Rows() {
					for _, col := range table.Columns() {
						_, ok := row[col]
						require.True(t, ok)
					}
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 200; j++ {
			s.Replace(NewTable([]string{"A", "B"}, []Row{
				{"A": {Kind: KindText, Text: "x"}},
			}))
		}
	}()

	wg.Wait()
}

func TestNewTablePadsMissingCells(t *testing.T) {
	table := NewTable([]string{"A", "B"}, []Row{{"A": {Kind: KindText, Text: "1"}}})

	row := table.Rows()[0]
	require.Equal(t, KindMissing, row["B"].Kind)
	require.True(t, row["B"].Missing())
}
