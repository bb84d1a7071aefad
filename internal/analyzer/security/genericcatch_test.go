package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/config"
)

func TestGenericCatchBroadException(t *testing.T) {
	issues := analyzeSrc(t, NewGenericCatch(config.AnalyzerConfig{}), `<?php
namespace App\Services;

class SyncService
{
    public function run()
    {
        try {
            $this->sync();
        } catch (\Exception $e) {
            report($e);
        }
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, codeBroadCatch, issues[0].Code)
	assert.Equal(t, analyzer.SeverityMedium, issues[0].Severity)
	assert.Equal(t, "Exception", issues[0].Metadata["caught"])
}

func TestGenericCatchEmptyBodySwallows(t *testing.T) {
	issues := analyzeSrc(t, NewGenericCatch(config.AnalyzerConfig{}), `<?php
namespace App\Services;

class SyncService
{
    public function run()
    {
        try {
            $this->sync();
        } catch (\Throwable $e) {
        }
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, codeEmptyCatch, issues[0].Code)
	assert.Equal(t, "Throwable", issues[0].Metadata["caught"])
}

func TestGenericCatchSpecificTypePasses(t *testing.T) {
	issues := analyzeSrc(t, NewGenericCatch(config.AnalyzerConfig{}), `<?php
namespace App\Services;

use RuntimeException;

class SyncService
{
    public function run()
    {
        try {
            $this->sync();
        } catch (RuntimeException $e) {
            report($e);
        }
    }
}
`)
	assert.Empty(t, issues)
}

func TestGenericCatchMultiTypeList(t *testing.T) {
	issues := analyzeSrc(t, NewGenericCatch(config.AnalyzerConfig{}), `<?php
namespace App\Services;

class SyncService
{
    public function run()
    {
        try {
            $this->sync();
        } catch (\RuntimeException | \Exception $e) {
            report($e);
        }
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, codeBroadCatch, issues[0].Code)
}

func TestGenericCatchSuppressedByClassMarker(t *testing.T) {
	issues := analyzeSrc(t, NewGenericCatch(config.AnalyzerConfig{}), `<?php
namespace App\Services;

/** @laralint-ignore generic_exception_catch */
class SyncService
{
    public function run()
    {
        try {
            $this->sync();
        } catch (\Exception $e) {
        }
    }
}
`)
	assert.Empty(t, issues)
}
