package main

import (
	"flag"

	"github.com/blueplan/diary-go/internal/diary/geo"
	"github.com/blueplan/diary-go/internal/diary/types"
)

// locatorFromFlags 只有在显式给出坐标或设备错误码时才返回定位器。
// 没有定位结果时会话里不应出现位置。
func locatorFromFlags(passed map[string]bool, lat, lon float64, geoErr int) (geo.Locator, bool) {
	if passed["geo-error"] && geoErr != 0 {
		return geo.FailingLocatorFromCode(geoErr), true
	}
	if passed["lat"] && passed["lon"] {
		return geo.StaticLocator{Coords: types.Coordinates{Latitude: lat, Longitude: lon}}, true
	}
	return nil, false
}

func passedFlags(fs *flag.FlagSet) map[string]bool {
	passed := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { passed[f.Name] = true })
	return passed
}
