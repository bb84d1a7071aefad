package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/config"
)

func TestMassAssignmentRequestAllIntoCreate(t *testing.T) {
	issues := analyzeSrc(t, NewMassAssignment(config.AnalyzerConfig{}), `<?php
namespace App\Http\Controllers;

use App\Models\User;

class UserController
{
    public function store($request)
    {
        return User::create($request->all());
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, codeMassAssignment, issues[0].Code)
	assert.Equal(t, analyzer.SeverityHigh, issues[0].Severity)
	assert.Equal(t, "create", issues[0].Metadata["call"])
}

func TestMassAssignmentValidatedInputPasses(t *testing.T) {
	issues := analyzeSrc(t, NewMassAssignment(config.AnalyzerConfig{}), `<?php
namespace App\Http\Controllers;

use App\Models\User;

class UserController
{
    public function store($request)
    {
        return User::create($request->validated());
    }
}
`)
	assert.Empty(t, issues)
}

func TestMassAssignmentNarrowedAllPasses(t *testing.T) {
	issues := analyzeSrc(t, NewMassAssignment(config.AnalyzerConfig{}), `<?php
namespace App\Http\Controllers;

use App\Models\User;

class UserController
{
    public function store($request)
    {
        return User::create($request->all('name'));
    }
}
`)
	assert.Empty(t, issues)
}

func TestMassAssignmentFillOnInstance(t *testing.T) {
	issues := analyzeSrc(t, NewMassAssignment(config.AnalyzerConfig{}), `<?php
namespace App\Http\Controllers;

class UserController
{
    public function update($user, $storeRequest)
    {
        $user->fill($storeRequest->all());
        $user->save();
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, "fill", issues[0].Metadata["call"])
}

func TestMassAssignmentSuppressedByClassMarker(t *testing.T) {
	issues := analyzeSrc(t, NewMassAssignment(config.AnalyzerConfig{}), `<?php
namespace App\Http\Controllers;

use App\Models\User;

/** @laralint-ignore mass_assignment */
class UserController
{
    public function store($request)
    {
        return User::create($request->all());
    }
}
`)
	assert.Empty(t, issues)
}
