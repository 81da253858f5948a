package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"github.com/fberger-xyz/orderbook-wtf/internal/testutil"
)

func TestLoadConfigDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")
	if AppConfig.Network.Name != "ethereum-mainnet" {
		t.Fatalf("unexpected network name: %s", AppConfig.Network.Name)
	}
	if AppConfig.Orderbook.GridPoints != 25 {
		t.Fatalf("expected default grid points 25, got %d", AppConfig.Orderbook.GridPoints)
	}
}

func TestLoadConfigOverride(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("staging")
	if AppConfig.Orderbook.GridPoints != 15 {
		t.Fatalf("expected GridPoints 15, got %d", AppConfig.Orderbook.GridPoints)
	}
	if !AppConfig.Testing {
		t.Fatalf("expected testing override to be true")
	}
}

func TestLoadConfigSandbox(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	data := []byte("network:\n  name: sandbox\n  chain_id: 1337\n")
	if err := sb.WriteFile("config/default.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")

	if AppConfig.Network.Name != "sandbox" {
		t.Fatalf("expected network name sandbox, got %s", AppConfig.Network.Name)
	}
	if AppConfig.Network.ChainID != 1337 {
		t.Fatalf("expected ChainID 1337, got %d", AppConfig.Network.ChainID)
	}
}
