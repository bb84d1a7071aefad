package bestpractices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/config"
)

func TestEagerLoadTooManyRelations(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewEagerLoad(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Post;

class PostService
{
    public function run()
    {
        return Post::with('user', 'comments', 'tags', 'media', 'likes', 'category')->get();
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, codeEagerLoadCount, issues[0].Code)
	assert.Equal(t, analyzer.SeverityLow, issues[0].Severity)
	assert.Len(t, issues[0].Metadata["relations"], 6)
}

func TestEagerLoadAtLimitPasses(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewEagerLoad(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Post;

class PostService
{
    public function run()
    {
        return Post::with('user', 'comments', 'tags', 'media', 'likes')->get();
    }
}
`)
	assert.Empty(t, issues)
}

func TestEagerLoadLimitConfigurable(t *testing.T) {
	reg := testRegistry(t)
	max := 2
	issues := analyze(t, NewEagerLoad(config.AnalyzerConfig{MaxRelations: &max}), reg, `<?php
namespace App\Services;

use App\Models\Post;

class PostService
{
    public function run()
    {
        return Post::with('user', 'comments', 'tags')->get();
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, codeEagerLoadCount, issues[0].Code)
}

func TestEagerLoadArrayArgumentCounted(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewEagerLoad(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Post;

class PostService
{
    public function run()
    {
        return Post::with(['user', 'comments', 'tags', 'media', 'likes', 'category'])->get();
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, codeEagerLoadCount, issues[0].Code)
}
