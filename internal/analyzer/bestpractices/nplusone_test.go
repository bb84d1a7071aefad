package bestpractices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/laralint/internal/config"
)

func TestNPlusOneLazyLoadInLoop(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewNPlusOne(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Post;

class PostService
{
    public function titles()
    {
        foreach (Post::all() as $post) {
            echo $post->user->name;
        }
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, codeLazyLoad, issues[0].Code)
	assert.Equal(t, "user", issues[0].Metadata["relation"])
	assert.Equal(t, "App\\Models\\Post", issues[0].Metadata["model"])
}

func TestNPlusOneDeduplicatesRepeatedAccess(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewNPlusOne(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Post;

class PostService
{
    public function run()
    {
        foreach (Post::all() as $post) {
            echo $post->user->name;
            echo $post->user->email;
        }
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, "user", issues[0].Metadata["relation"])
}

func TestNPlusOneEagerLoadedChainPasses(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewNPlusOne(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Post;

class PostService
{
    public function run()
    {
        foreach (Post::with('user')->get() as $post) {
            echo $post->user->name;
        }
    }
}
`)
	assert.Empty(t, issues)
}

func TestNPlusOneEagerSetSurvivesVariableAssignment(t *testing.T) {
	reg := testRegistry(t)
	a := NewNPlusOne(config.AnalyzerConfig{})

	issues := analyze(t, a, reg, `<?php
namespace App\Services;

use App\Models\Post;

class PostService
{
    public function covered()
    {
        $posts = Post::with('user')->get();
        foreach ($posts as $post) {
            echo $post->user->name;
        }
    }
}
`)
	assert.Empty(t, issues)

	issues = analyze(t, a, reg, `<?php
namespace App\Services;

use App\Models\Post;

class PostService
{
    public function uncovered()
    {
        $posts = Post::all();
        foreach ($posts as $post) {
            echo $post->user->name;
        }
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, "user", issues[0].Metadata["relation"])
}

func TestNPlusOneReportsDeepestUncoveredPath(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewNPlusOne(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Post;

class PostService
{
    public function run()
    {
        foreach (Post::with('user')->get() as $post) {
            echo $post->user->profile->name;
        }
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, "user.profile", issues[0].Metadata["relation"])
}

func TestNPlusOneNestedEagerMemberCoversPrefix(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewNPlusOne(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Post;

class PostService
{
    public function run()
    {
        foreach (Post::with('user.team')->get() as $post) {
            echo $post->user->name;
        }
    }
}
`)
	assert.Empty(t, issues)
}

func TestNPlusOneRelationLoadedGuard(t *testing.T) {
	reg := testRegistry(t)
	a := NewNPlusOne(config.AnalyzerConfig{})

	issues := analyze(t, a, reg, `<?php
namespace App\Services;

use App\Models\Post;

class PostService
{
    public function run()
    {
        foreach (Post::all() as $post) {
            if ($post->relationLoaded('user')) {
                echo $post->user->name;
            }
        }
    }
}
`)
	assert.Empty(t, issues)

	// The guard must not leak into a second loop.
	issues = analyze(t, a, reg, `<?php
namespace App\Services;

use App\Models\Post;

class PostService
{
    public function run()
    {
        foreach (Post::all() as $post) {
            if ($post->relationLoaded('user')) {
                echo $post->user->name;
            }
        }
        foreach (Post::all() as $post) {
            echo $post->user->name;
        }
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, "user", issues[0].Metadata["relation"])
}

func TestNPlusOneQueryInLoop(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewNPlusOne(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Post;
use App\Models\User;

class PostService
{
    public function run()
    {
        foreach (Post::all() as $post) {
            $author = User::where('id', $post->id)->first();
            echo $author->name;
        }
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, codeQueryInLoop, issues[0].Code)
}

func TestNPlusOneQueryInWhileLoop(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewNPlusOne(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\User;

class PostService
{
    public function run($ids)
    {
        $i = 0;
        while ($i < 10) {
            $user = User::find($i);
            echo $user->name;
            $i = $i + 1;
        }
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, codeQueryInLoop, issues[0].Code)
}

func TestNPlusOnePlainArrayLoopPasses(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewNPlusOne(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

class PostService
{
    public function run($items)
    {
        foreach ($items as $item) {
            echo $item->user->name;
        }
    }
}
`)
	assert.Empty(t, issues)
}

func TestNPlusOneAttributeAllowlistExtension(t *testing.T) {
	reg := testRegistry(t)
	a := NewNPlusOne(config.AnalyzerConfig{AttributeAllowlist: []string{"author_label"}})

	issues := analyze(t, a, reg, `<?php
namespace App\Services;

use App\Models\Post;

class PostService
{
    public function run()
    {
        foreach (Post::all() as $post) {
            echo $post->author_label;
        }
    }
}
`)
	assert.Empty(t, issues)
}

func TestNPlusOneSuppressedByClassMarker(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewNPlusOne(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Post;

/** @laralint-ignore n_plus_one */
class PostService
{
    public function run()
    {
        foreach (Post::all() as $post) {
            echo $post->user->name;
        }
    }
}
`)
	assert.Empty(t, issues)
}
