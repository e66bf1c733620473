package transforms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conveyor/conveyor/internal/envelope"
	"github.com/conveyor/conveyor/internal/stage"
)

func tabularFixture() *envelope.Tabular {
	return &envelope.Tabular{Columns: []envelope.Column{
		{Name: "id", Type: envelope.ColumnInt64, Data: []int64{1, 2, 3}},
		{Name: "name", Type: envelope.ColumnString, Data: []string{"a", "b", "c"}},
	}}
}

func TestFilterApplyGreaterThan(t *testing.T) {
	t.Parallel()

	f := Filter{}
	inputs := stage.Input{"up": envelope.NewTabular(tabularFixture())}
	params := stage.Params{"column": "id", "operator": ">", "value": int64(1)}

	require.NoError(t, f.ValidateParams(params))
	v, err := f.Execute(context.Background(), params, inputs)
	require.NoError(t, err)

	tab, err := v.AsTabular()
	require.NoError(t, err)
	require.Equal(t, 2, tab.RowCount())
}

func TestFilterApplyUnknownColumnFails(t *testing.T) {
	t.Parallel()

	f := Filter{}
	inputs := stage.Input{"up": envelope.NewTabular(tabularFixture())}
	params := stage.Params{"column": "missing", "operator": "==", "value": int64(1)}

	_, err := f.Execute(context.Background(), params, inputs)
	require.Error(t, err)
}

func TestFilterValidateParamsRejectsMissingColumn(t *testing.T) {
	t.Parallel()

	f := Filter{}
	require.Error(t, f.ValidateParams(stage.Params{"value": 1}))
}

func TestPassthroughReturnsInputUnchanged(t *testing.T) {
	t.Parallel()

	p := Passthrough{}
	in := envelope.NewRecords(envelope.Records{{"id": int64(1)}})
	inputs := stage.Input{"up": in}

	v, err := p.Execute(context.Background(), stage.Params{}, inputs)
	require.NoError(t, err)
	require.Equal(t, in, v)
}

func TestSelectApplyProjectsColumns(t *testing.T) {
	t.Parallel()

	s := Select{}
	inputs := stage.Input{"up": envelope.NewTabular(tabularFixture())}
	params := stage.Params{"columns": []any{"name"}}

	require.NoError(t, s.ValidateParams(params))
	v, err := s.Execute(context.Background(), params, inputs)
	require.NoError(t, err)

	tab, err := v.AsTabular()
	require.NoError(t, err)
	require.Len(t, tab.Columns, 1)
	require.Equal(t, "name", tab.Columns[0].Name)
}
