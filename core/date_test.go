package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateJSON(t *testing.T) {
	type payload struct {
		Born Date `json:"born"`
	}

	data, err := json.Marshal(payload{Born: NewDate(2014, time.March, 9)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"born": "2014-03-09"}`, string(data))

	data, err = json.Marshal(payload{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"born": null}`, string(data))

	tests := []struct {
		name    string
		in      string
		want    Date
		wantErr bool
	}{
		{name: "date", in: `{"born": "2014-03-09"}`, want: NewDate(2014, time.March, 9)},
		{name: "rfc3339", in: `{"born": "2014-03-09T10:00:00Z"}`, want: NewDate(2014, time.March, 9)},
		{name: "null", in: `{"born": null}`},
		{name: "empty", in: `{"born": ""}`},
		{name: "invalid", in: `{"born": "09/03/2014"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			err := json.Unmarshal([]byte(tt.in), &p)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(p.Born.Time), "got %v", p.Born)
		})
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2020, time.January, 2, 15, 4, 5, 0, time.UTC)))
	assert.Equal(t, "2020-01-02", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	v, err := d.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.Error(t, d.Scan(42))
}

func TestCleanOrderings(t *testing.T) {
	orderings := []DBOrdering{{Field: "name", Ascending: true}, {Field: "password_hash"}, {Field: "created_at"}}
	got := CleanOrderings(orderings, "name", "created_at")
	assert.Equal(t, []DBOrdering{{Field: "name", Ascending: true}, {Field: "created_at"}}, got)
	assert.Equal(t, "created_at DESC", got[1].String())
	assert.Nil(t, CleanOrderings(nil, "name"))
}
