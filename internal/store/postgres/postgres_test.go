package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TRIPCOLLAB_BACK-END/internal/common"
)

func TestMapError(t *testing.T) {
	plain := errors.New("boom")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", fmt.Errorf("get plan: %w", pgx.ErrNoRows), common.ErrNotFound},
		{"duplicate invitation", &pgconn.PgError{Code: "23505", ConstraintName: "invitations_plan_email_key"}, common.ErrAlreadyInvited},
		{"other unique", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, common.ErrConflict},
		{"foreign key", &pgconn.PgError{Code: "23503", ConstraintName: "votes_proposal_id_fkey"}, common.ErrNotFound},
		{"unknown code", &pgconn.PgError{Code: "40001"}, nil},
		{"plain", plain, plain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.in)
			switch {
			case tt.in == nil:
				assert.NoError(t, got)
			case tt.want == nil:
				assert.Same(t, tt.in, got)
			default:
				assert.ErrorIs(t, got, tt.want)
			}
		})
	}
}

func TestMapError_CheckViolation(t *testing.T) {
	err := mapError(&pgconn.PgError{Code: "23514", ColumnName: "rating", Message: "rating out of range"})
	var ve *common.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "rating", ve.Field)
	assert.Equal(t, "rating out of range", ve.Reason)
}

func TestJSONParam(t *testing.T) {
	v, err := jsonParam(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	var empty map[string]string
	v, err = jsonParam(empty)
	require.NoError(t, err)
	assert.Nil(t, v, "a nil map is stored as NULL")

	v, err = jsonParam(struct {
		Day int `json:"day"`
	}{Day: 2})
	require.NoError(t, err)
	assert.Equal(t, `{"day":2}`, v)

	_, err = jsonParam(make(chan int))
	assert.Error(t, err)
}
