package indicators

import (
	"math"
	"sort"

	"equity-screener/pkg/types"
)

// ZoneClusterer 支撑/阻力位聚类
type ZoneClusterer struct {
	threshold float64
}

// NewZoneClusterer 创建聚类器，threshold<=0 时使用 0.02
func NewZoneClusterer(threshold float64) *ZoneClusterer {
	if threshold <= 0 {
		threshold = 0.02
	}
	return &ZoneClusterer{
		threshold: threshold,
	}
}

// Cluster 按价格升序依次归并候选位
// 与当前簇最后一个成员的相对距离不超过阈值则并入，否则开启新簇
func (zc *ZoneClusterer) Cluster(zones []types.Zone) []types.ZoneCluster {
	clusters := make([]types.ZoneCluster, 0)
	if len(zones) == 0 {
		return clusters
	}

	sorted := make([]types.Zone, len(zones))
	copy(sorted, zones)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price < sorted[j].Price
	})

	sum := sorted[0].Price
	count := 1
	last := sorted[0].Price
	flush := func() {
		clusters = append(clusters, types.ZoneCluster{
			Price:   sum / float64(count),
			Touches: count,
		})
	}

	for _, z := range sorted[1:] {
		if zc.near(z.Price, last) {
			sum += z.Price
			count++
		} else {
			flush()
			sum, count = z.Price, 1
		}
		last = z.Price
	}
	flush()

	return clusters
}

func (zc *ZoneClusterer) near(price, last float64) bool {
	if last == 0 {
		return price == 0
	}
	return math.Abs(price-last)/math.Abs(last) <= zc.threshold
}

// Strongest 触及次数最多的簇；次数相同时取离参考价最近的，再相同取价格较低的
func Strongest(clusters []types.ZoneCluster, reference float64) (types.ZoneCluster, bool) {
	if len(clusters) == 0 {
		return types.ZoneCluster{}, false
	}

	best := clusters[0]
	for _, c := range clusters[1:] {
		switch {
		case c.Touches > best.Touches:
			best = c
		case c.Touches < best.Touches:
		default:
			dc := math.Abs(c.Price - reference)
			db := math.Abs(best.Price - reference)
			if dc < db || (dc == db && c.Price < best.Price) {
				best = c
			}
		}
	}
	return best, true
}
