package pipeline

import (
	"reflect"
	"testing"
)

func TestDetectDuplicatesIntraReportURL(t *testing.T) {
	current := []Fingerprint{
		{NormalizedURL: "https://news.example.com/a", ContentHash: "h1"},
		{NormalizedURL: "https://news.example.com/a", ContentHash: "h2"},
	}

	result := DetectDuplicates(current, nil)

	if result.HasCrossReport() {
		t.Error("Intra-report duplicate must not register as cross-report")
	}
	if len(result.Findings) != 1 {
		t.Fatalf("Expected 1 finding, got %d", len(result.Findings))
	}
	// First occurrence stays clean, the repeat is flagged
	if result.Findings[0].Index != 1 {
		t.Errorf("Expected the second occurrence flagged, got index %d", result.Findings[0].Index)
	}
	if !reflect.DeepEqual(result.Findings[0].Reasons, []string{ReasonURLIntra}) {
		t.Errorf("Unexpected reasons: %v", result.Findings[0].Reasons)
	}
	if result.IsDuplicate(0) {
		t.Error("First occurrence should not be a duplicate")
	}
	if !result.IsDuplicate(1) {
		t.Error("Second occurrence should be a duplicate")
	}
}

func TestDetectDuplicatesIntraReportContent(t *testing.T) {
	// Different URLs mirroring the same article
	current := []Fingerprint{
		{NormalizedURL: "https://a.example.com/story", ContentHash: "samehash"},
		{NormalizedURL: "https://b.example.com/mirror", ContentHash: "samehash"},
	}

	result := DetectDuplicates(current, nil)

	if len(result.Findings) != 1 {
		t.Fatalf("Expected 1 finding, got %d", len(result.Findings))
	}
	if !reflect.DeepEqual(result.Findings[0].Reasons, []string{ReasonContentIntra}) {
		t.Errorf("Unexpected reasons: %v", result.Findings[0].Reasons)
	}
}

func TestDetectDuplicatesCrossReportURL(t *testing.T) {
	current := []Fingerprint{
		{NormalizedURL: "https://news.example.com/a", ContentHash: "h1"},
	}
	existing := []StoredFingerprint{
		{ReportID: "r-other", NormalizedURL: "https://news.example.com/a", ContentHash: "h9"},
	}

	result := DetectDuplicates(current, existing)

	if !result.HasCrossReport() {
		t.Fatal("Expected a cross-report duplicate")
	}
	if !reflect.DeepEqual(result.OffendingReportIDs, []string{"r-other"}) {
		t.Errorf("Expected offending report [r-other], got %v", result.OffendingReportIDs)
	}
	if !reflect.DeepEqual(result.Findings[0].Reasons, []string{ReasonURLCross}) {
		t.Errorf("Unexpected reasons: %v", result.Findings[0].Reasons)
	}
}

func TestDetectDuplicatesCrossReportContent(t *testing.T) {
	// Re-uploaded content behind a fresh share link
	current := []Fingerprint{
		{NormalizedURL: "https://drive.google.com/uc", ContentHash: "reused"},
	}
	existing := []StoredFingerprint{
		{ReportID: "r1", NormalizedURL: "https://other.example.com/x", ContentHash: "reused"},
		{ReportID: "r2", NormalizedURL: "https://another.example.com/y", ContentHash: "reused"},
	}

	result := DetectDuplicates(current, existing)

	if !reflect.DeepEqual(result.OffendingReportIDs, []string{"r1", "r2"}) {
		t.Errorf("Expected sorted offending reports [r1 r2], got %v", result.OffendingReportIDs)
	}
}

func TestDetectDuplicatesEmptyHashNeverMatches(t *testing.T) {
	// Unreachable links have no content hash; they must not collide
	current := []Fingerprint{
		{NormalizedURL: "https://a.example.com/1", ContentHash: ""},
		{NormalizedURL: "https://a.example.com/2", ContentHash: ""},
	}
	existing := []StoredFingerprint{
		{ReportID: "r1", NormalizedURL: "https://b.example.com/3", ContentHash: ""},
	}

	result := DetectDuplicates(current, existing)

	if len(result.Findings) != 0 {
		t.Errorf("Empty hashes should never match, got findings %v", result.Findings)
	}
}

func TestDetectDuplicatesBothAxes(t *testing.T) {
	current := []Fingerprint{
		{NormalizedURL: "https://news.example.com/a", ContentHash: "h1"},
		{NormalizedURL: "https://news.example.com/a", ContentHash: "h1"},
	}

	result := DetectDuplicates(current, nil)

	if len(result.Findings) != 1 {
		t.Fatalf("Expected 1 finding, got %d", len(result.Findings))
	}
	reasons := result.Findings[0].Reasons
	if !reflect.DeepEqual(reasons, []string{ReasonURLIntra, ReasonContentIntra}) {
		t.Errorf("Both axes should be recorded, got %v", reasons)
	}
}

func TestDetectDuplicatesNoFindings(t *testing.T) {
	current := []Fingerprint{
		{NormalizedURL: "https://news.example.com/a", ContentHash: "h1"},
		{NormalizedURL: "https://news.example.com/b", ContentHash: "h2"},
	}
	existing := []StoredFingerprint{
		{ReportID: "r1", NormalizedURL: "https://news.example.com/c", ContentHash: "h3"},
	}

	result := DetectDuplicates(current, existing)

	if len(result.Findings) != 0 || result.HasCrossReport() {
		t.Errorf("Expected clean result, got %+v", result)
	}
}
