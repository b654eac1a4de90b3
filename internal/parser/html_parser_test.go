package parser

import (
	"reflect"
	"testing"
)

func TestLinkExtractor_Extract(t *testing.T) {
	markup := []byte(`
<!DOCTYPE html>
<html>
<head>
	<title>Archive</title>
	<link rel="canonical" href="https://blog.example/archive">
</head>
<body>
	<a href="https://blog.example/p/first-post">First</a>
	<a href="/p/relative-post">Relative</a>
	<a href="#top">Top</a>
	<a href="mailto:me@blog.example">Mail</a>
	<a href="javascript:void(0)">JS</a>
	<a href="  http://other.example/x  ">Other</a>
	<a>No href</a>
	<div><a href="HTTPS://blog.example/p/second">Nested</a></div>
	<a href="https://blog.example/p/first-post">First again</a>
	<a href="https://">Empty host</a>
</body>
</html>`)

	links, err := NewLinkExtractor().Extract(markup)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	expected := []string{
		"https://blog.example/p/first-post",
		"http://other.example/x",
		"HTTPS://blog.example/p/second",
		"https://blog.example/p/first-post",
	}
	if !reflect.DeepEqual(links, expected) {
		t.Errorf("Extract() = %v, want %v", links, expected)
	}
}

func TestLinkExtractor_EmptyMarkup(t *testing.T) {
	links, err := NewLinkExtractor().Extract([]byte("   \n"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("Expected no links, got %v", links)
	}
}

func TestLinkExtractor_MalformedMarkup(t *testing.T) {
	// The HTML5 parser recovers from unclosed tags
	links, err := NewLinkExtractor().Extract([]byte(`<div><a href="https://blog.example/p/1">one<p><a href="https://blog.example/p/2">`))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(links) != 2 {
		t.Errorf("Expected 2 links, got %v", links)
	}
}

func TestLinkExtractor_CustomSchemes(t *testing.T) {
	markup := []byte(`<a href="http://blog.example/a">a</a><a href="https://blog.example/b">b</a>`)

	links, err := NewLinkExtractorWithSchemes([]string{"https://"}).Extract(markup)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !reflect.DeepEqual(links, []string{"https://blog.example/b"}) {
		t.Errorf("Extract() = %v", links)
	}
}
