package douyin

// Detail 是从上游 API 归一化出来的视频详情。
//
// 字段名跟着抖音 Web 接口的 JSON 走，上游返回的壳子
// （aweme_detail / data 包一层）由 fetchmeta 负责剥掉。
type Detail struct {
	AwemeID    string     `json:"aweme_id"`
	Desc       string     `json:"desc"`
	CreateTime int64      `json:"create_time"`
	Author     Author     `json:"author"`
	Statistics Statistics `json:"statistics"`
	Video      Video      `json:"video"`
}

type Author struct {
	Nickname       string   `json:"nickname"`
	Signature      string   `json:"signature"`
	FollowerCount  int64    `json:"follower_count"`
	TotalFavorited int64    `json:"total_favorited"`
	AvatarThumb    AddrInfo `json:"avatar_thumb"`
}

type Statistics struct {
	DiggCount    int64 `json:"digg_count"`
	CommentCount int64 `json:"comment_count"`
	CollectCount int64 `json:"collect_count"`
	ShareCount   int64 `json:"share_count"`
}

type Video struct {
	Duration     int64         `json:"duration"`
	Cover        AddrInfo      `json:"cover"`
	PlayAddr     AddrInfo      `json:"play_addr"`
	DownloadAddr AddrInfo      `json:"download_addr"`
	BitRate      []BitRateItem `json:"bit_rate"`
}

// BitRateItem 是单个转码档位。抖音对同一个视频会给出多档
// 不同分辨率/码率的地址，选档逻辑见 rendition.go。
type BitRateItem struct {
	GearName    string   `json:"gear_name"`
	QualityType int      `json:"quality_type"`
	BitRate     int64    `json:"bit_rate"`
	FPS         int      `json:"fps"`
	Format      string   `json:"format"`
	PlayAddr    AddrInfo `json:"play_addr"`
}

// AddrInfo 是抖音通用的"一组候选 URL + 尺寸"结构。
type AddrInfo struct {
	URI      string   `json:"uri"`
	URLList  []string `json:"url_list"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	DataSize int64    `json:"data_size"`
	FileHash string   `json:"file_hash"`
}
