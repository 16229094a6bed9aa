package migrations

import "testing"

func TestNamesAreOrdered(t *testing.T) {
	names, err := Names()
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if len(names) == 0 || names[0] != "001_game_results.sql" {
		t.Fatalf("unexpected migrations: %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("out of order: %v", names)
		}
	}
}
