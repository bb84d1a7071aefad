package bestpractices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/config"
)

func TestMixedSameTableCollision(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewMixedQuery(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\User;
use Illuminate\Support\Facades\DB;

class UserService
{
    public function active()
    {
        return User::where('active', 1)->get();
    }

    public function total()
    {
        return DB::table('users')->count();
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, codeMixedSameTable, issues[0].Code)
	assert.Equal(t, analyzer.SeverityHigh, issues[0].Severity)
	assert.Equal(t, "users", issues[0].Metadata["table"])
	assert.Equal(t, "App\\Models\\User", issues[0].Metadata["model"])
}

func TestMixedRawOnlyFrameworkTablesPass(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewMixedQuery(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\User;
use Illuminate\Support\Facades\DB;

class QueueInspector
{
    public function pending()
    {
        return DB::table('jobs')->count();
    }

    public function failed()
    {
        return DB::table('failed_jobs')->count();
    }

    public function users()
    {
        return User::all();
    }
}
`)
	assert.Empty(t, issues)
}

func TestMixedSpreadOverThreshold(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewMixedQuery(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\User;
use Illuminate\Support\Facades\DB;

class ReportService
{
    public function build()
    {
        $users = User::all();
        $posts = DB::table('posts')->count();
        $orders = DB::table('orders')->count();
        $payments = DB::table('payments')->count();
        return $users;
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, codeMixedSpread, issues[0].Code)
	assert.Equal(t, analyzer.SeverityMedium, issues[0].Severity)
}

func TestMixedSpreadThresholdConfigurable(t *testing.T) {
	reg := testRegistry(t)
	threshold := 5
	issues := analyze(t, NewMixedQuery(config.AnalyzerConfig{Threshold: &threshold}), reg, `<?php
namespace App\Services;

use App\Models\User;
use Illuminate\Support\Facades\DB;

class ReportService
{
    public function build()
    {
        $users = User::all();
        $posts = DB::table('posts')->count();
        $orders = DB::table('orders')->count();
        $payments = DB::table('payments')->count();
        return $users;
    }
}
`)
	assert.Empty(t, issues)
}

func TestMixedProvenanceThroughVariable(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewMixedQuery(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\User;
use Illuminate\Support\Facades\DB;

class UserService
{
    public function run()
    {
        $q = User::where('active', 1);
        $users = $q->get();
        $count = DB::table('users')->count();
        return $users;
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, codeMixedSameTable, issues[0].Code)
}

func TestMixedWhitelistExemptsClass(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewMixedQuery(config.AnalyzerConfig{Whitelist: []string{"UserService"}}), reg, `<?php
namespace App\Services;

use App\Models\User;
use Illuminate\Support\Facades\DB;

class UserService
{
    public function run()
    {
        $users = User::all();
        return DB::table('users')->count();
    }
}
`)
	assert.Empty(t, issues)
}

func TestMixedSuppressionMarker(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewMixedQuery(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\User;
use Illuminate\Support\Facades\DB;

/** @laralint-ignore mixed_query_builder */
class UserService
{
    public function run()
    {
        $users = User::all();
        return DB::table('users')->count();
    }
}
`)
	assert.Empty(t, issues)
}

func TestMixedToBaseFlag(t *testing.T) {
	reg := testRegistry(t)
	src := `<?php
namespace App\Services;

use App\Models\User;

class UserService
{
    public function run()
    {
        return User::where('active', 1)->toBase()->get();
    }
}
`
	issues := analyze(t, NewMixedQuery(config.AnalyzerConfig{}), reg, src)
	assert.Empty(t, issues)

	countToBase := true
	issues = analyze(t, NewMixedQuery(config.AnalyzerConfig{CountToBase: &countToBase}), reg, src)
	require.Len(t, issues, 1)
	assert.Equal(t, codeMixedSameTable, issues[0].Code)
}

func TestMixedRelationshipChainNotResolved(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewMixedQuery(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use Illuminate\Support\Facades\DB;

class UserService
{
    public function run($user)
    {
        $posts = $user->posts()->where('published', 1)->get();
        return DB::table('posts')->count();
    }
}
`)
	assert.Empty(t, issues)
}
