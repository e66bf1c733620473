package envelope

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueKind(t *testing.T) {
	t.Parallel()

	t.Run("tabular", func(t *testing.T) {
		t.Parallel()
		v := NewTabular(&Tabular{Columns: []Column{{Name: "a", Type: ColumnInt64, Data: []int64{1, 2}}}})
		require.Equal(t, KindTabular, v.Kind())
		require.Equal(t, "tabular", v.Kind().String())
	})

	t.Run("records", func(t *testing.T) {
		t.Parallel()
		v := NewRecords(Records{{"a": 1}})
		require.Equal(t, KindRecords, v.Kind())
	})

	t.Run("raw", func(t *testing.T) {
		t.Parallel()
		v := NewRaw([]byte("hello"), "text/plain")
		require.Equal(t, KindRaw, v.Kind())
		require.Equal(t, "hello", string(v.Raw().Bytes))
	})
}

func TestRecordsToTabularRoundTrip(t *testing.T) {
	t.Parallel()

	records := Records{
		{"id": int64(1), "name": "alice", "active": true},
		{"id": int64(2), "name": "bob", "active": false},
	}
	v := NewRecords(records)

	tab, err := v.AsTabular()
	require.NoError(t, err)
	require.Equal(t, 2, tab.RowCount())

	back := NewTabular(tab)
	rows, err := back.AsRecords()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "alice", rows[0]["name"])
	require.Equal(t, int64(2), rows[1]["id"])
}

func TestRecordsToTabularMissingKeyBecomesNull(t *testing.T) {
	t.Parallel()

	records := Records{
		{"id": int64(1), "name": "alice"},
		{"id": int64(2)},
	}
	tab := recordsToTabular(records)
	require.NotNil(t, tab)

	var nameCol *Column
	for i := range tab.Columns {
		if tab.Columns[i].Name == "name" {
			nameCol = &tab.Columns[i]
		}
	}
	require.NotNil(t, nameCol)
	require.NotNil(t, nameCol.NullMask)
	require.True(t, nameCol.NullMask[1])
}

func TestRawConversionFails(t *testing.T) {
	t.Parallel()

	v := NewRaw([]byte("data"), "")
	_, err := v.AsTabular()
	require.Error(t, err)

	_, err = v.AsRecords()
	require.Error(t, err)
}

func TestStreamCloneFails(t *testing.T) {
	t.Parallel()

	v := NewStream(&fakeStream{})
	_, err := v.TryClone()
	require.Error(t, err)

	_, err = v.AsTabular()
	require.Error(t, err)
}

func TestEmptyTabular(t *testing.T) {
	t.Parallel()

	v := EmptyTabular()
	require.Equal(t, KindTabular, v.Kind())
	size, ok := v.SizeHint()
	require.True(t, ok)
	require.Equal(t, 0, size)
}

func TestTryCloneIndependence(t *testing.T) {
	t.Parallel()

	records := Records{{"a": 1}}
	v := NewRecords(records)
	clone, err := v.TryClone()
	require.NoError(t, err)

	clone.Records()[0]["a"] = 2
	require.Equal(t, 1, v.Records()[0]["a"])
}

type fakeStream struct{}

func (f *fakeStream) Next() (RecordBatch, bool, error) { return RecordBatch{}, false, nil }
func (f *fakeStream) Close() error                     { return nil }
