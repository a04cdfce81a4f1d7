// Copyright 2025 ChainSight
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/go-redis/redis/v8"
)

const leaderboardKey = "leaderboard"

// Scoreboard publishes compliance scores and reports the user's rank.
type Scoreboard interface {
	// Update stores the score and returns the user's 1-indexed
	// position ordered by descending score.
	Update(ctx context.Context, userID string, score int) (int, error)
}

// RedisScoreboard keeps the leaderboard in a redis sorted set shared by
// all orchestrator instances.
type RedisScoreboard struct {
	client *redis.Client
}

// NewRedisScoreboard wraps client as a Scoreboard.
func NewRedisScoreboard(client *redis.Client) *RedisScoreboard {
	return &RedisScoreboard{client: client}
}

// Update implements Scoreboard.
func (r *RedisScoreboard) Update(ctx context.Context, userID string, score int) (int, error) {
	err := r.client.ZAdd(ctx, leaderboardKey, &redis.Z{
		Score:  float64(score),
		Member: userID,
	}).Err()
	if err != nil {
		return 0, err
	}

	rank, err := r.client.ZRevRank(ctx, leaderboardKey, userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 1, nil
		}
		return 0, err
	}
	return int(rank) + 1, nil
}

// Badge definitions. Each badge is stored as "<name>: <criteria>" and
// surfaced to the user with a congratulation message.
const (
	badgeExplorer     = "Explorer: Asked 5 questions"
	badgeAchiever     = "Achiever: 3 successful queries in a row"
	badgePolicyExpert = "Policy Expert: Asked 5 policy-related questions"

	explorerQueryCount   = 5
	achieverStreakLength = 3
	policyExpertAtCount  = 10
	policyExpertMinimum  = 5
)

// badgeName returns the part of a stored badge before the colon.
func badgeName(badge string) string {
	name, _, _ := strings.Cut(badge, ":")
	return name
}

// awardBadge increments the session's question counter and returns the
// congratulation message for a newly earned badge, if any. Each badge
// is awarded at most once per session.
func awardBadge(session *Session) string {
	session.QueryCount++

	if session.QueryCount == explorerQueryCount && !session.hasBadge("Explorer") {
		session.Badges = append(session.Badges, badgeExplorer)
		return "Congratulations! You've earned the 'Explorer' badge for asking 5 questions!"
	}

	if session.SuccessfulQueries == achieverStreakLength && !session.hasBadge("Achiever") {
		session.Badges = append(session.Badges, badgeAchiever)
		return "Great job! You've earned the 'Achiever' badge for 3 successful queries in a row!"
	}

	if session.QueryCount == policyExpertAtCount && !session.hasBadge("Policy Expert") {
		policyQueries := 0
		for _, entry := range session.History {
			if strings.Contains(strings.ToLower(entry.Question), "policy") {
				policyQueries++
			}
		}
		if policyQueries >= policyExpertMinimum {
			session.Badges = append(session.Badges, badgePolicyExpert)
			return "Awesome! You've earned the 'Policy Expert' badge for asking 5 policy-related questions!"
		}
	}

	return ""
}
