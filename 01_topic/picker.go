// Package topic seeds the quote topic, optionally from what is trending on a
// motivational subreddit. Failures here are never fatal — the configured
// default topic always works.
package topic

import (
	"context"
	"log"
	"strings"

	"github.com/vartanbeno/go-reddit/v2/reddit"

	"quote-shorts-pipeline/config"
)

// Picker selects the topic for this run.
type Picker struct {
	cfg    *config.Config
	client *reddit.Client
}

// New creates a new Picker. The reddit client is read-only and unauthenticated.
func New(cfg *config.Config) *Picker {
	var client *reddit.Client
	if cfg.Topic.FromReddit {
		c, err := reddit.NewReadonlyClient()
		if err != nil {
			log.Printf("[topic] Warning: reddit client init failed: %v — using default topic", err)
		} else {
			client = c
		}
	}
	return &Picker{cfg: cfg, client: client}
}

// Run returns the topic to generate a quote about.
func (p *Picker) Run(ctx context.Context) string {
	if !p.cfg.Topic.FromReddit || p.client == nil {
		return p.cfg.Topic.Default
	}

	limit := p.cfg.Topic.MaxPostsEval
	if limit <= 0 {
		limit = 25
	}

	posts, _, err := p.client.Subreddit.HotPosts(ctx, p.cfg.Topic.Subreddit, &reddit.ListOptions{Limit: limit})
	if err != nil {
		log.Printf("[topic] Warning: r/%s fetch failed: %v — using default topic", p.cfg.Topic.Subreddit, err)
		return p.cfg.Topic.Default
	}

	best := pickTitle(posts)
	if best == "" {
		log.Printf("[topic] No usable post titles from r/%s — using default topic", p.cfg.Topic.Subreddit)
		return p.cfg.Topic.Default
	}

	log.Printf("[topic] Seeding quote topic from r/%s: %q", p.cfg.Topic.Subreddit, best)
	return best
}

// pickTitle returns the highest-scored post title short enough to serve as a
// topic seed. Stickied mod posts and link dumps make poor seeds.
func pickTitle(posts []*reddit.Post) string {
	best := ""
	bestScore := -1
	for _, post := range posts {
		title := strings.TrimSpace(post.Title)
		if post.Stickied || title == "" || len(title) > 140 {
			continue
		}
		if post.Score > bestScore {
			best = title
			bestScore = post.Score
		}
	}
	return best
}
