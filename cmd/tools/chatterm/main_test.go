package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modelchat "github.com/zhouzirui/waychat/backend/internal/model/chat"
	"github.com/zhouzirui/waychat/backend/internal/service/ai"
	"github.com/zhouzirui/waychat/backend/internal/service/chat"
)

func TestConverse(t *testing.T) {
	calls := 0
	session := chat.NewSession(ai.CompleterFunc(func(_ context.Context, turns []modelchat.Turn) (string, error) {
		calls++
		return "Here's an idea:\n\nOpen on steam rising...", nil
	}), "sys")

	var out bytes.Buffer
	in := strings.NewReader("Make me an ad for a coffee shop\n\n/exit\nnever sent\n")

	err := converse(context.Background(), session, newTerminalView(&out, "WayChat"), "Hello!", in, &out)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "blank lines are not sent and /exit stops the loop")
	assert.Equal(t, 3, session.Len())

	text := out.String()
	assert.Contains(t, text, "Hello!")
	assert.Contains(t, text, "Make me an ad for a coffee shop")
	assert.Contains(t, text, "Open on steam rising...")
	assert.NotContains(t, text, "never sent")
}

func TestConverseRendersFailure(t *testing.T) {
	session := chat.NewSession(ai.CompleterFunc(func(context.Context, []modelchat.Turn) (string, error) {
		return "", errors.New("network down")
	}), "sys")

	var out bytes.Buffer
	err := converse(context.Background(), session, newTerminalView(&out, "WayChat"), "", strings.NewReader("hi\n"), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Error: network down")
	assert.Equal(t, 2, session.Len())
}
