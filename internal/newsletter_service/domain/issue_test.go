package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNewsletterIssue(t *testing.T) {
	issue, err := NewNewsletterIssue("Issue #1", "<p>Hi</p>", "Hi")
	require.NoError(t, err)
	assert.NotEqual(t, issue.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, "Issue #1", issue.Title)
}

func TestNewNewsletterIssueAcceptsSingleContentVariant(t *testing.T) {
	_, err := NewNewsletterIssue("Issue #1", "<p>Hi</p>", "")
	assert.NoError(t, err)

	_, err = NewNewsletterIssue("Issue #1", "", "Hi")
	assert.NoError(t, err)
}

func TestNewNewsletterIssueRejectsEmptyFields(t *testing.T) {
	_, err := NewNewsletterIssue("   ", "<p>Hi</p>", "Hi")
	assert.ErrorIs(t, err, ErrInvalidIssue)

	_, err = NewNewsletterIssue("Issue #1", "  ", "")
	assert.ErrorIs(t, err, ErrInvalidIssue)
}
