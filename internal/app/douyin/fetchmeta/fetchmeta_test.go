package fetchmeta

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const detailJSON = `{
	"aweme_id": "7342156789012345678",
	"desc": "测试视频",
	"author": {"nickname": "阿猫", "follower_count": 1200},
	"statistics": {"digg_count": 99},
	"video": {
		"duration": 15000,
		"bit_rate": [{"gear_name": "normal_720", "fps": 30, "bit_rate": 1500000,
			"play_addr": {"width": 720, "height": 1280, "url_list": ["https://www.douyin.com/a"]}}]
	}
}`

func newUpstream(t *testing.T, payload string, status int) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/douyin/web/fetch_one_video" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("aweme_id"); got != "7342156789012345678" {
			t.Errorf("aweme_id = %q", got)
		}
		w.WriteHeader(status)
		w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-agent", 2*time.Second)
}

func TestFetchDetailStandardEnvelope(t *testing.T) {
	c := newUpstream(t, `{"code": 200, "data": {"aweme_detail": `+detailJSON+`}}`, http.StatusOK)

	d, err := c.FetchDetail(context.Background(), "7342156789012345678")
	if err != nil {
		t.Fatalf("FetchDetail: %v", err)
	}
	if d.AwemeID != "7342156789012345678" {
		t.Errorf("AwemeID = %q", d.AwemeID)
	}
	if d.Author.Nickname != "阿猫" {
		t.Errorf("Nickname = %q", d.Author.Nickname)
	}
	if len(d.Video.BitRate) != 1 || d.Video.BitRate[0].FPS != 30 {
		t.Errorf("BitRate = %+v", d.Video.BitRate)
	}
}

func TestFetchDetailFlatData(t *testing.T) {
	// 另一个版本的网关不包 aweme_detail，data 直接就是详情
	c := newUpstream(t, `{"code": 0, "data": `+detailJSON+`}`, http.StatusOK)

	d, err := c.FetchDetail(context.Background(), "7342156789012345678")
	if err != nil {
		t.Fatalf("FetchDetail: %v", err)
	}
	if d.Desc != "测试视频" {
		t.Errorf("Desc = %q", d.Desc)
	}
}

func TestFetchRawUpstreamStatus(t *testing.T) {
	c := newUpstream(t, `upstream says no`, http.StatusBadGateway)

	_, err := c.FetchRaw(context.Background(), "7342156789012345678")
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if ue.Status != http.StatusBadGateway {
		t.Errorf("Status = %d", ue.Status)
	}
}

func TestFetchRawErrorCode(t *testing.T) {
	// HTTP 层是 200，但壳子里的业务 code 报错，算上游错误而不是壳子坏了
	c := newUpstream(t, `{"code": 500, "message": "boom", "data": null}`, http.StatusOK)

	_, err := c.FetchRaw(context.Background(), "7342156789012345678")
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if ue.Code != 500 {
		t.Errorf("Code = %d, want 500", ue.Code)
	}
}

func TestFetchRawNoDetailShape(t *testing.T) {
	// data 有内容但既没有 aweme_detail 也没有 video+author，
	// 不能拿一个空详情糊弄调用方
	c := newUpstream(t, `{"code": 0, "data": {"status_msg": "ok"}}`, http.StatusOK)

	_, err := c.FetchRaw(context.Background(), "7342156789012345678")
	var me *MalformedResponseError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want *MalformedResponseError", err)
	}
}

func TestFetchRawGarbage(t *testing.T) {
	c := newUpstream(t, `<html>not json</html>`, http.StatusOK)

	_, err := c.FetchRaw(context.Background(), "7342156789012345678")
	var me *MalformedResponseError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want *MalformedResponseError", err)
	}
}
