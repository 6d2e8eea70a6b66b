package douyin

import "testing"

func TestClassifyVideoID(t *testing.T) {
	c := NewClassifier("v.douyin.com")

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare id", "7342156789012345678", "7342156789012345678"},
		{"web url with query", "https://www.douyin.com/video/7342156789012345678?previous_page=app", "7342156789012345678"},
		{"url ending with id", "https://www.douyin.com/discover/7342156789012345678", "7342156789012345678"},
		{"id buried in text", "看这个 7342156789012345678 超好笑", "7342156789012345678"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(tc.in)
			if got.Kind != KindVideoID {
				t.Fatalf("Kind = %q, want %q", got.Kind, KindVideoID)
			}
			if got.VideoID != tc.want {
				t.Errorf("VideoID = %q, want %q", got.VideoID, tc.want)
			}
		})
	}
}

func TestClassifyShareText(t *testing.T) {
	c := NewClassifier("v.douyin.com")

	// 典型的抖音分享口令：前后都是文案，链接夹在中间
	in := "8.32 复制打开抖音，看看作品 https://v.douyin.com/iRGaBx2/ 复制此链接"
	got := c.Classify(in)
	if got.Kind != KindShortLink {
		t.Fatalf("Kind = %q, want %q", got.Kind, KindShortLink)
	}
	if got.Link != "https://v.douyin.com/iRGaBx2" {
		t.Errorf("Link = %q, want trailing slash stripped", got.Link)
	}
}

func TestClassifyShortLinkBeatsLooseID(t *testing.T) {
	c := NewClassifier("v.douyin.com")

	// 文案里同时有散落的长数字和短链时，短链规则先命中
	in := "单号 7342156789012345678 详情见 https://v.douyin.com/abc_DEF-1"
	got := c.Classify(in)
	if got.Kind != KindShortLink {
		t.Fatalf("Kind = %q, want %q (short link rule runs before loose id)", got.Kind, KindShortLink)
	}
	if got.Link != "https://v.douyin.com/abc_DEF-1" {
		t.Errorf("Link = %q", got.Link)
	}
}

func TestClassifyLongURLBeatsShortLink(t *testing.T) {
	c := NewClassifier("v.douyin.com")

	// 长链里已经带着 aweme_id，短链解析一次都不该发起
	in := "https://www.iesdouyin.com/share/video/x/?aweme_id=7342156789012345678 备用 https://v.douyin.com/iRGaBx2/"
	got := c.Classify(in)
	if got.Kind != KindVideoID {
		t.Fatalf("Kind = %q, want %q (explicit id beats the short link)", got.Kind, KindVideoID)
	}
	if got.VideoID != "7342156789012345678" {
		t.Errorf("VideoID = %q", got.VideoID)
	}
}

func TestClassifyIDBeforeQuestionMark(t *testing.T) {
	c := NewClassifier("v.douyin.com")
	got := c.Classify("https://www.douyin.com/note/7342156789012345678?from=share")
	if got.Kind != KindVideoID || got.VideoID != "7342156789012345678" {
		t.Fatalf("got %+v, want video id 7342156789012345678", got)
	}
}

func TestClassifyUserProfile(t *testing.T) {
	c := NewClassifier("v.douyin.com")
	got := c.Classify("https://www.douyin.com/user/MS4wLjABAAAA123")
	if got.Kind != KindUserProfile {
		t.Fatalf("Kind = %q, want %q", got.Kind, KindUserProfile)
	}
}

func TestClassifyUnrecognized(t *testing.T) {
	c := NewClassifier("v.douyin.com")
	for _, in := range []string{"", "   ", "hello world", "https://example.com/video"} {
		if got := c.Classify(in); got.Kind != KindUnrecognized {
			t.Errorf("Classify(%q).Kind = %q, want %q", in, got.Kind, KindUnrecognized)
		}
	}
}
