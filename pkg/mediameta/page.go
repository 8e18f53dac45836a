package mediameta

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/net/html"
)

// lookupPage scrapes the watch page for videos the oEmbed endpoint refuses
// to describe. The thumbnail URL follows a fixed scheme keyed by video id,
// so only title and author come from the document.
func (r *Resolver) lookupPage(ctx context.Context, videoID string) (Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://youtu.be/"+videoID, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to create page request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to fetch watch page: %w", err)
	}
	defer resp.Body.Close()

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to parse watch page: %w", err)
	}

	return Metadata{
		Title:        findTitle(doc),
		AuthorName:   findAuthorName(doc),
		ThumbnailURL: fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoID),
	}, nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return n.FirstChild.Data
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}

// findAuthorName reads the <link itemprop="name" content="..."> node the
// watch page embeds for the channel.
func findAuthorName(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "link" {
		var isName bool
		var content string
		for _, attr := range n.Attr {
			switch {
			case attr.Key == "itemprop" && attr.Val == "name":
				isName = true
			case attr.Key == "content":
				content = attr.Val
			}
		}
		if isName {
			return content
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if name := findAuthorName(c); name != "" {
			return name
		}
	}
	return ""
}
