package status

import "testing"

func sampleRecords() []UninstallRecord {
	return []UninstallRecord{
		{DisplayName: "Microsoft Visual C++ 2015-2022 Redistributable (x64)", Hive: MachineNative},
		{DisplayName: "Microsoft Visual C++ 2015-2022 Redistributable (x64)", Hive: MachineWow64},
		{DisplayName: "microsoft visual c++ 2015-2022 redistributable (X64)", Hive: UserNative},
		{DisplayName: "7-Zip 24.08 (x64)", Hive: MachineNative},
		{DisplayName: "Mozilla Firefox (x64 en-US)", Hive: UserWow64},
	}
}

func TestFilterRecordsAbsentName(t *testing.T) {
	got := filterRecords(sampleRecords(), "Not Installed Anywhere")
	if len(got) != 0 {
		t.Errorf("got %d records for an absent name, want 0", len(got))
	}
}

func TestFilterRecordsDeduplicatesAcrossHives(t *testing.T) {
	got := filterRecords(sampleRecords(), "Visual C++")
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1 per distinct display name", len(got))
	}
	if got[0].Hive != MachineNative {
		t.Errorf("hive = %s, want first occurrence (MachineNative)", got[0].Hive)
	}
}

func TestFilterRecordsCaseInsensitiveSubstring(t *testing.T) {
	got := filterRecords(sampleRecords(), "firefox")
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].DisplayName != "Mozilla Firefox (x64 en-US)" {
		t.Errorf("display name = %q", got[0].DisplayName)
	}
}

func TestFilterRecordsEmptyNameReturnsAllDistinct(t *testing.T) {
	got := filterRecords(sampleRecords(), "")
	if len(got) != 3 {
		t.Errorf("got %d records, want 3 distinct display names", len(got))
	}
}

func TestFilterRecordsEmptyInput(t *testing.T) {
	if got := filterRecords(nil, "anything"); len(got) != 0 {
		t.Errorf("got %d records from empty scan, want 0", len(got))
	}
}
