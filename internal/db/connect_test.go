package db

import "testing"

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			"no password",
			DSN("root", "", "127.0.0.1", 3306, "storefront"),
			"root@tcp(127.0.0.1:3306)/storefront?parseTime=true&charset=utf8mb4",
		},
		{
			"with password",
			DSN("shop", "s3cret", "db.internal", 3307, "orders"),
			"shop:s3cret@tcp(db.internal:3307)/orders?parseTime=true&charset=utf8mb4",
		},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: DSN = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestConnectSQLiteInMemory(t *testing.T) {
	gdb, err := ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("ConnectSQLite: %v", err)
	}
	if gdb == nil {
		t.Fatal("ConnectSQLite returned nil db")
	}
}
