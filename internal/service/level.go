package service

// LevelForPoints 等级 = 1 + 已达到的阈值个数，阈值需升序
func LevelForPoints(points int, thresholds []int) int {
	level := 1
	for _, t := range thresholds {
		if points < t {
			break
		}
		level++
	}
	return level
}

// NextLevelPoints 下一等级所需积分，已满级时 ok 为 false
func NextLevelPoints(points int, thresholds []int) (next int, ok bool) {
	for _, t := range thresholds {
		if points < t {
			return t, true
		}
	}
	return 0, false
}
