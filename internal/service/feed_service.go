// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/domain/port"
	"github.com/truecivic/parliament-service/pkg/constants"
	"github.com/truecivic/parliament-service/pkg/feedid"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// FeedEntry is one syndication item before rendering. The GUID is stable
// across rebuilds; the renderer never invents identity.
type FeedEntry struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Date        time.Time
	// UpdatedAt drives the scope fingerprint.
	UpdatedAt time.Time
}

// FeedService assembles the entries behind every feed scope.
type FeedService interface {
	// AllEntries is the composite recent-updates feed.
	AllEntries(ctx context.Context, jurisdiction string, excludeBillIDs []int64) ([]FeedEntry, error)

	// LatestBillEntries is the bills/latest scope.
	LatestBillEntries(ctx context.Context, jurisdiction string, excludeBillIDs []int64) ([]FeedEntry, error)

	// TagBillEntries is the bills/tag/{tag} scope.
	TagBillEntries(ctx context.Context, jurisdiction, tag string) ([]FeedEntry, error)

	// BillEntries is the bill/{id} scope: the bill's own events plus votes on
	// it.
	BillEntries(ctx context.Context, jurisdiction, billNaturalID string) ([]FeedEntry, error)

	// PoliticianEntries is the mp/{id} scope: bills sponsored by the member.
	PoliticianEntries(ctx context.Context, jurisdiction, politicianID string) ([]FeedEntry, error)

	// CommitteeEntries is the committee/{id} scope: recent meetings.
	CommitteeEntries(ctx context.Context, jurisdiction, committeeNaturalID string) ([]FeedEntry, error)
}

type feedServiceOption func(*feedService)

// WithFeedBillRepository sets the bill repository.
func WithFeedBillRepository(repo port.BillRepository) feedServiceOption {
	return func(s *feedService) {
		s.bills = repo
	}
}

// WithFeedVoteRepository sets the vote repository.
func WithFeedVoteRepository(repo port.VoteRepository) feedServiceOption {
	return func(s *feedService) {
		s.votes = repo
	}
}

// WithFeedDebateRepository sets the debate repository.
func WithFeedDebateRepository(repo port.DebateRepository) feedServiceOption {
	return func(s *feedService) {
		s.debates = repo
	}
}

// WithFeedCommitteeRepository sets the committee repository.
func WithFeedCommitteeRepository(repo port.CommitteeRepository) feedServiceOption {
	return func(s *feedService) {
		s.committees = repo
	}
}

// WithFeedBaseURL sets the public link prefix used in items.
func WithFeedBaseURL(baseURL string) feedServiceOption {
	return func(s *feedService) {
		s.baseURL = baseURL
	}
}

type feedService struct {
	bills      port.BillRepository
	votes      port.VoteRepository
	debates    port.DebateRepository
	committees port.CommitteeRepository
	baseURL    string
}

// NewFeedService creates the service using the option pattern.
func NewFeedService(opts ...feedServiceOption) FeedService {
	s := &feedService{
		baseURL: "https://truecivic.ca",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func bilingualOr(b model.Bilingual, fallback string) string {
	if b.EN != nil && *b.EN != "" {
		return *b.EN
	}
	if b.FR != nil && *b.FR != "" {
		return *b.FR
	}
	return fallback
}

func (s *feedService) billEvents(bill model.Bill) []FeedEntry {
	title := bilingualOr(bill.Title, bill.Key.Number)
	link := fmt.Sprintf("%s/bills/%s", s.baseURL, bill.Key.NaturalID())

	var entries []FeedEntry
	if bill.IntroducedDate != nil {
		entries = append(entries, FeedEntry{
			GUID: feedid.GUID(bill.Key.Jurisdiction, "bill", bill.Key.NaturalID(),
				feedid.EventIntroduced, *bill.IntroducedDate),
			Title:       fmt.Sprintf("Bill %s introduced: %s", bill.Key.Number, title),
			Link:        link,
			Description: descriptionOrTitle(bill.Summary, title),
			Date:        *bill.IntroducedDate,
			UpdatedAt:   bill.UpdatedAt,
		})
	}
	if bill.RoyalAssentDate != nil {
		entries = append(entries, FeedEntry{
			GUID: feedid.GUID(bill.Key.Jurisdiction, "bill", bill.Key.NaturalID(),
				feedid.EventRoyalAssent, *bill.RoyalAssentDate),
			Title:       fmt.Sprintf("Bill %s received royal assent: %s", bill.Key.Number, title),
			Link:        link,
			Description: descriptionOrTitle(bill.Summary, title),
			Date:        *bill.RoyalAssentDate,
			UpdatedAt:   bill.UpdatedAt,
		})
	}
	return entries
}

func descriptionOrTitle(summary *string, title string) string {
	if summary != nil && *summary != "" {
		return *summary
	}
	return title
}

func (s *feedService) voteEvent(vote model.Vote) FeedEntry {
	description := bilingualOr(vote.Description, string(vote.Result))
	return FeedEntry{
		GUID: feedid.GUID(vote.Key.Jurisdiction, "vote", vote.Key.NaturalID(),
			feedid.EventVoteHeld, vote.Date),
		Title: fmt.Sprintf("Vote #%d (%s): %s — %s",
			vote.Key.Number, vote.Chamber, description, vote.Result),
		Link:        fmt.Sprintf("%s/votes/%s", s.baseURL, vote.Key.NaturalID()),
		Description: fmt.Sprintf("%s. Yeas %d, nays %d.", description, vote.Yeas, vote.Nays),
		Date:        vote.Date,
		UpdatedAt:   vote.UpdatedAt,
	}
}

func (s *feedService) debateEvent(debate model.Debate) FeedEntry {
	topic := bilingualOr(debate.Topic, debate.Chamber+" debates")
	return FeedEntry{
		GUID: feedid.GUID(debate.Key.Jurisdiction, "debate", debate.Key.NaturalID(),
			feedid.EventDebate, debate.Date),
		Title:       fmt.Sprintf("Debates of %s: %s", debate.Date.Format("January 2, 2006"), topic),
		Link:        fmt.Sprintf("%s/debates/%s", s.baseURL, debate.Key.NaturalID()),
		Description: topic,
		Date:        debate.Date,
		UpdatedAt:   debate.UpdatedAt,
	}
}

// sortAndCap orders entries newest first with the GUID as tiebreak and caps
// the feed length.
func sortAndCap(entries []FeedEntry) []FeedEntry {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].GUID < entries[j].GUID
	})
	if len(entries) > constants.FeedItemCount {
		entries = entries[:constants.FeedItemCount]
	}
	return entries
}

func feedPage() paging.Params {
	return paging.Params{Limit: constants.FeedItemCount}
}

// AllEntries merges recent bills, votes, and debates.
func (s *feedService) AllEntries(ctx context.Context, jurisdiction string, excludeBillIDs []int64) ([]FeedEntry, error) {
	bills, _, err := s.bills.GetByFilter(ctx,
		model.BillFilter{Jurisdiction: jurisdiction, ExcludeIDs: excludeBillIDs}, feedPage())
	if err != nil {
		return nil, err
	}
	votes, _, err := s.votes.GetByFilter(ctx,
		model.VoteFilter{Jurisdiction: jurisdiction}, feedPage())
	if err != nil {
		return nil, err
	}
	debates, _, err := s.debates.GetByFilter(ctx,
		model.DebateFilter{Jurisdiction: jurisdiction}, feedPage())
	if err != nil {
		return nil, err
	}

	excluded := make(map[int64]bool, len(excludeBillIDs))
	for _, id := range excludeBillIDs {
		excluded[id] = true
	}

	var entries []FeedEntry
	for _, bill := range bills {
		entries = append(entries, s.billEvents(bill)...)
	}
	for _, vote := range votes {
		// Votes on an ignored bill disappear with it.
		if vote.BillID != nil && excluded[*vote.BillID] {
			continue
		}
		entries = append(entries, s.voteEvent(vote))
	}
	for _, debate := range debates {
		entries = append(entries, s.debateEvent(debate))
	}
	return sortAndCap(entries), nil
}

// LatestBillEntries lists recent bill events.
func (s *feedService) LatestBillEntries(ctx context.Context, jurisdiction string, excludeBillIDs []int64) ([]FeedEntry, error) {
	bills, _, err := s.bills.GetByFilter(ctx,
		model.BillFilter{Jurisdiction: jurisdiction, ExcludeIDs: excludeBillIDs}, feedPage())
	if err != nil {
		return nil, err
	}

	var entries []FeedEntry
	for _, bill := range bills {
		entries = append(entries, s.billEvents(bill)...)
	}
	return sortAndCap(entries), nil
}

// TagBillEntries lists bill events for one subject tag.
func (s *feedService) TagBillEntries(ctx context.Context, jurisdiction, tag string) ([]FeedEntry, error) {
	bills, _, err := s.bills.GetByFilter(ctx,
		model.BillFilter{Jurisdiction: jurisdiction, Tag: &tag}, feedPage())
	if err != nil {
		return nil, err
	}

	var entries []FeedEntry
	for _, bill := range bills {
		entries = append(entries, s.billEvents(bill)...)
	}
	return sortAndCap(entries), nil
}

// BillEntries lists one bill's events plus the votes held on it.
func (s *feedService) BillEntries(ctx context.Context, jurisdiction, billNaturalID string) ([]FeedEntry, error) {
	key, err := model.ParseBillNaturalID(jurisdiction, billNaturalID)
	if err != nil {
		return nil, err
	}
	bill, err := s.bills.GetByNaturalKey(ctx, key)
	if err != nil {
		return nil, err
	}

	entries := s.billEvents(*bill)

	votes, _, err := s.votes.GetByFilter(ctx,
		model.VoteFilter{Jurisdiction: jurisdiction, BillID: &bill.ID}, feedPage())
	if err != nil {
		return nil, err
	}
	for _, vote := range votes {
		entries = append(entries, s.voteEvent(vote))
	}
	return sortAndCap(entries), nil
}

// PoliticianEntries lists bills sponsored by the member.
func (s *feedService) PoliticianEntries(ctx context.Context, jurisdiction, politicianID string) ([]FeedEntry, error) {
	bills, _, err := s.bills.GetByFilter(ctx,
		model.BillFilter{Jurisdiction: jurisdiction, SponsorID: &politicianID}, feedPage())
	if err != nil {
		return nil, err
	}

	var entries []FeedEntry
	for _, bill := range bills {
		entries = append(entries, s.billEvents(bill)...)
	}
	return sortAndCap(entries), nil
}

// CommitteeEntries lists a committee's recent meetings.
func (s *feedService) CommitteeEntries(ctx context.Context, jurisdiction, committeeNaturalID string) ([]FeedEntry, error) {
	key, err := model.ParseCommitteeNaturalID(jurisdiction, committeeNaturalID)
	if err != nil {
		return nil, err
	}
	committee, err := s.committees.GetByNaturalKey(ctx, key)
	if err != nil {
		return nil, err
	}

	meetings, _, err := s.committees.GetMeetings(ctx, key, feedPage())
	if err != nil {
		return nil, err
	}

	name := bilingualOr(committee.Name, committee.Key.Slug)
	var entries []FeedEntry
	for _, meeting := range meetings {
		title := bilingualOr(meeting.Title, fmt.Sprintf("Meeting %d", meeting.Number))
		entries = append(entries, FeedEntry{
			GUID: feedid.GUID(jurisdiction, "committee-meeting", meeting.MeetingNaturalID(),
				feedid.EventMeeting, meeting.Date),
			Title:       fmt.Sprintf("%s: %s", name, title),
			Link:        fmt.Sprintf("%s/committees/%s/meetings/%d", s.baseURL, committeeNaturalID, meeting.Number),
			Description: title,
			Date:        meeting.Date,
			UpdatedAt:   meeting.UpdatedAt,
		})
	}
	return sortAndCap(entries), nil
}

// Fingerprint reduces a scope's entries to the cache key component: the
// latest updated_at among members, as unix seconds.
func Fingerprint(entries []FeedEntry) int64 {
	var latest int64
	for _, entry := range entries {
		if ts := entry.UpdatedAt.Unix(); ts > latest {
			latest = ts
		}
	}
	return latest
}
