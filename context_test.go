package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGlobalContextSynthesizesAndCaches(t *testing.T) {
	doc := newTestDocument("", "", "")
	stub := &stubCapabilities{}
	store := newTestStore(t, doc, "en")

	first, err := BuildGlobalContext(context.Background(), stub, store, doc)
	require.NoError(t, err)
	assert.NotEmpty(t, first)
	assert.Equal(t, 1, stub.overviewCalls)

	second, err := BuildGlobalContext(context.Background(), stub, store, doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, stub.overviewCalls, "resumed runs reuse the cached context")
}

func TestBuildGlobalContextSeesEveryVisual(t *testing.T) {
	doc := newTestDocument("", "", "", "")
	var seen []VisualRef
	stub := &stubCapabilities{
		overviewFn: func(visuals []VisualRef) (string, error) {
			seen = visuals
			return "overview text", nil
		},
	}
	store := newTestStore(t, doc, "en")

	_, err := BuildGlobalContext(context.Background(), stub, store, doc)
	require.NoError(t, err)
	require.Len(t, seen, 4)
	for i, slide := range doc.Slides {
		assert.Equal(t, slide.Visual, seen[i])
	}
}

func TestBuildGlobalContextFailureIsFatal(t *testing.T) {
	doc := newTestDocument("", "")
	stub := &stubCapabilities{
		overviewFn: func(visuals []VisualRef) (string, error) {
			return "", fmt.Errorf("capability offline")
		},
	}
	store := newTestStore(t, doc, "en")

	_, err := BuildGlobalContext(context.Background(), stub, store, doc)
	require.Error(t, err)
	var fatal *FatalIOError
	assert.True(t, errors.As(err, &fatal))
}

func TestBuildGlobalContextRejectsEmptyOverview(t *testing.T) {
	doc := newTestDocument("")
	stub := &stubCapabilities{
		overviewFn: func(visuals []VisualRef) (string, error) {
			return "   \n ", nil
		},
	}
	store := newTestStore(t, doc, "en")

	_, err := BuildGlobalContext(context.Background(), stub, store, doc)
	require.Error(t, err)
	var fatal *FatalIOError
	assert.True(t, errors.As(err, &fatal))
	assert.Empty(t, store.GlobalContext(context.Background()), "nothing cached on failure")
}
