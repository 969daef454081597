package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildFilter(f StatFilter) (string, []interface{}) {
	b := &whereBuilder{}
	f.apply(b)
	return b.clause(), b.arguments()
}

func TestEmptyFilterProducesNoClause(t *testing.T) {
	clause, args := buildFilter(StatFilter{})
	assert.Equal(t, "", clause)
	assert.Empty(t, args)
}

func TestActionTypeFilter(t *testing.T) {
	clause, args := buildFilter(StatFilter{ActionType: "upload"})
	assert.Equal(t, " WHERE action_type = $1", clause)
	assert.Equal(t, []interface{}{"upload"}, args)
}

func TestUserEmailFilter(t *testing.T) {
	clause, args := buildFilter(StatFilter{UserEmail: "bob@mail.com"})
	assert.Equal(t, " WHERE user_email = $1", clause)
	assert.Equal(t, []interface{}{"bob@mail.com"}, args)
}

func TestGuestFilterMatchesNullEmail(t *testing.T) {
	clause, args := buildFilter(StatFilter{UserEmail: GuestUser})
	assert.Equal(t, " WHERE user_email IS NULL", clause)
	assert.Empty(t, args)
}

func TestActiveUsersFilterExcludesInternalAccounts(t *testing.T) {
	clause, args := buildFilter(StatFilter{UserEmail: ActiveUsers})
	assert.Equal(t,
		" WHERE user_email IS NOT NULL AND user_email NOT LIKE '%example.com%' AND LOWER(user_email) NOT LIKE '%admin%'",
		clause)
	assert.Empty(t, args)
}

func TestCustomListFilterTrimsEntries(t *testing.T) {
	clause, args := buildFilter(StatFilter{UserEmail: "CUSTOM_LIST: a@x.com , b@y.com ,, "})
	assert.Equal(t, " WHERE user_email IN ($1,$2)", clause)
	assert.Equal(t, []interface{}{"a@x.com", "b@y.com"}, args)
}

func TestCustomListFilterEmptyListIsNoop(t *testing.T) {
	clause, args := buildFilter(StatFilter{UserEmail: "CUSTOM_LIST: , ,"})
	assert.Equal(t, "", clause)
	assert.Empty(t, args)
}

func TestCombinedFilterRenumbersPlaceholders(t *testing.T) {
	clause, args := buildFilter(StatFilter{ActionType: "download", UserEmail: "bob@mail.com"})
	assert.Equal(t, " WHERE action_type = $1 AND user_email = $2", clause)
	assert.Equal(t, []interface{}{"download", "bob@mail.com"}, args)
}

func TestCombinedFilterWithCustomList(t *testing.T) {
	clause, args := buildFilter(StatFilter{ActionType: "upload", UserEmail: "CUSTOM_LIST:a@x.com,b@y.com"})
	assert.Equal(t, " WHERE action_type = $1 AND user_email IN ($2,$3)", clause)
	assert.Equal(t, []interface{}{"upload", "a@x.com", "b@y.com"}, args)
}

func TestBindContinuesNumberingAfterFilter(t *testing.T) {
	b := &whereBuilder{}
	StatFilter{ActionType: "upload"}.apply(b)
	assert.Equal(t, "$2", b.bind(50))
	assert.Equal(t, "$3", b.bind(0))
	assert.Equal(t, []interface{}{"upload", 50, 0}, b.arguments())
}
