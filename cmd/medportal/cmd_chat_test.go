package main

import (
	"bytes"
	"testing"
	"time"

	"medportal/internal/auth"
	"medportal/internal/session"
	"medportal/internal/transcript"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListArchived(t *testing.T) {
	store := session.NewMemoryStore(map[string]string{session.KeyAuthToken: "tok"})
	archive := transcript.NewArchive(store, "chat_history")

	var out bytes.Buffer
	require.NoError(t, listArchived(&out, archive))
	assert.Equal(t, "No archived transcripts.\n", out.String())

	greeting := transcript.GreetingTranscript(auth.RoleDoctor, time.Unix(0, 0))
	require.NoError(t, archive.Save(auth.DoctorIdentity("7"), greeting))
	require.NoError(t, archive.Save(auth.NoIdentity, greeting))

	out.Reset()
	require.NoError(t, listArchived(&out, archive))
	assert.Equal(t, "chat_history:anonymous\nchat_history:doctor:7\n", out.String())
}
