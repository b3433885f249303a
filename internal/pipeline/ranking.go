package pipeline

import (
	"math"
	"sort"

	"recruit-pipeline/internal/types"
)

// avgEpsilon 判断两个平均票数相等的容差
const avgEpsilon = 1e-9

// DenseRank 按 avg_vote 降序排序并计算密集排名：并列者同名次，下一个不同的值名次加一。
// 同分时按姓名、再按 ID 排序，保证输出稳定。结果原地写回并返回。
func DenseRank(results []types.DelibResult) []types.DelibResult {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if !sameAvg(a.AvgVote, b.AvgVote) {
			return a.AvgVote > b.AvgVote
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ApplicantRoundID < b.ApplicantRoundID
	})

	rank := 0
	for i := range results {
		if i == 0 || !sameAvg(results[i].AvgVote, results[i-1].AvgVote) {
			rank++
		}
		results[i].RankDense = rank
	}

	// 相邻且同分即并列
	for i := range results {
		tied := false
		if i > 0 && sameAvg(results[i].AvgVote, results[i-1].AvgVote) {
			tied = true
		}
		if i+1 < len(results) && sameAvg(results[i].AvgVote, results[i+1].AvgVote) {
			tied = true
		}
		results[i].IsTied = tied
	}
	return results
}

func sameAvg(a, b float64) bool {
	return math.Abs(a-b) <= avgEpsilon
}

type voteTally struct {
	sum   int
	count int
}

func (t voteTally) avg() float64 {
	if t.count == 0 {
		return 0
	}
	return float64(t.sum) / float64(t.count)
}

// tallyVotes 按桥接记录汇总投票
func tallyVotes(votes []types.DelibsVote) map[string]voteTally {
	tally := make(map[string]voteTally)
	for _, v := range votes {
		t := tally[v.ApplicantRoundID]
		t.sum += v.VoteValue
		t.count++
		tally[v.ApplicantRoundID] = t
	}
	return tally
}
