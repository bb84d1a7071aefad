package bestpractices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/laralint/internal/config"
)

func TestTransactionTwoUnprotectedWritesFail(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewTransaction(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Order;
use App\Models\Payment;

class CheckoutService
{
    public function store($data)
    {
        Order::create($data);
        Payment::create($data);
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, codeUnprotectedWrites, issues[0].Code)
	assert.Equal(t, 2, issues[0].Metadata["unprotectedWrites"])
	assert.Equal(t, "store", issues[0].Metadata["method"])
}

func TestTransactionSingleWritePasses(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewTransaction(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Order;

class CheckoutService
{
    public function store($data)
    {
        Order::create($data);
    }
}
`)
	assert.Empty(t, issues)
}

func TestTransactionClosureProtectsWrites(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewTransaction(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Order;
use App\Models\Payment;
use Illuminate\Support\Facades\DB;

class CheckoutService
{
    public function store($data)
    {
        DB::transaction(function () use ($data) {
            Order::create($data);
            Payment::create($data);
        });
    }
}
`)
	assert.Empty(t, issues)
}

func TestTransactionClosureDoesNotProtectRetroactively(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewTransaction(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Order;
use App\Models\Payment;
use Illuminate\Support\Facades\DB;

class CheckoutService
{
    public function store($data)
    {
        Order::create($data);
        Payment::create($data);
        DB::transaction(function () {
        });
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, 2, issues[0].Metadata["unprotectedWrites"])
}

func TestTransactionBeginCommitRegion(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewTransaction(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Order;
use App\Models\Payment;
use Illuminate\Support\Facades\DB;

class CheckoutService
{
    public function store($data)
    {
        DB::beginTransaction();
        try {
            Order::create($data);
            Payment::create($data);
            DB::commit();
        } catch (\RuntimeException $e) {
            DB::rollBack();
        }
    }
}
`)
	assert.Empty(t, issues)
}

func TestTransactionWritesAfterCommitCount(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewTransaction(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Order;
use App\Models\Payment;
use Illuminate\Support\Facades\DB;

class CheckoutService
{
    public function store($data)
    {
        DB::beginTransaction();
        Order::create($data);
        DB::commit();
        Payment::create($data);
        Order::create($data);
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, 2, issues[0].Metadata["unprotectedWrites"])
}

func TestTransactionModelInstanceWritesCount(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewTransaction(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

class ProfileService
{
    public function rename($user, $profile)
    {
        $user->save();
        $profile->update(['name' => 'x']);
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, 2, issues[0].Metadata["unprotectedWrites"])
}

func TestTransactionPropertyRootedWritesCount(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewTransaction(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

class CheckoutService
{
    public function finalize($data)
    {
        $this->order->save();
        $this->payment->update($data);
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, 2, issues[0].Metadata["unprotectedWrites"])
}

func TestTransactionWritesInsideSwitchCounted(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewTransaction(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

class FulfillmentService
{
    public function advance($order, $state)
    {
        switch ($state) {
            case 'shipped':
                $order->save();
                $order->touch();
                break;
            default:
                break;
        }
    }
}
`)
	require.Len(t, issues, 1)
	assert.Equal(t, 2, issues[0].Metadata["unprotectedWrites"])
}

func TestTransactionNonDurableWritesExcluded(t *testing.T) {
	reg := testRegistry(t)
	issues := analyze(t, NewTransaction(config.AnalyzerConfig{}), reg, `<?php
namespace App\Services;

use App\Models\Order;
use Illuminate\Support\Facades\Cache;
use Illuminate\Support\Facades\Session;

class CheckoutService
{
    public function store($data)
    {
        Order::create($data);
        Cache::increment('orders');
        Session::save();
    }
}
`)
	assert.Empty(t, issues)
}

func TestTransactionThresholdConfigurable(t *testing.T) {
	reg := testRegistry(t)
	threshold := 3
	issues := analyze(t, NewTransaction(config.AnalyzerConfig{Threshold: &threshold}), reg, `<?php
namespace App\Services;

use App\Models\Order;
use App\Models\Payment;

class CheckoutService
{
    public function store($data)
    {
        Order::create($data);
        Payment::create($data);
    }
}
`)
	assert.Empty(t, issues)
}

func TestTransactionSeederPathExcluded(t *testing.T) {
	reg := testRegistry(t)
	issues := analyzeAt(t, NewTransaction(config.AnalyzerConfig{}), reg,
		"database/seeders/OrderSeeder.php", `<?php
namespace Database\Seeders;

use App\Models\Order;

class OrderSeeder
{
    public function run()
    {
        Order::create(['a' => 1]);
        Order::create(['a' => 2]);
        Order::create(['a' => 3]);
    }
}
`)
	assert.Empty(t, issues)
}
