package service_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/okian/rocatrun/internal/adapters/repository"
	"github.com/okian/rocatrun/internal/adapters/repository/sqlite"
	service "github.com/okian/rocatrun/internal/app"
	"github.com/okian/rocatrun/internal/domain/model"
	"github.com/okian/rocatrun/internal/domain/nickname"
	"github.com/okian/rocatrun/internal/domain/progression"
	"github.com/okian/rocatrun/internal/domain/types"
	"github.com/okian/rocatrun/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeImages struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (f *fakeImages) Delete(_ context.Context, imageURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, imageURL)
	return f.err
}

func newService(t *testing.T, opts ...service.Option) (*service.Service, *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "svc.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := service.New(store, opts...)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		_ = svc.Stop(context.Background())
		_ = store.Close()
	})
	return svc, store
}

func createRequest(name string) types.CreateCharacterRequest {
	return types.CreateCharacterRequest{Nickname: name, Height: 170, Weight: 65, Age: 30, Gender: "MALE"}
}

func newMemberWithCharacter(t *testing.T, svc *service.Service, name string) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	m, err := svc.RegisterMember(ctx)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	c, err := svc.CreateCharacter(ctx, m.ID, createRequest(name))
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return m.ID, c.ID
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New(nil)

		Convey("Then operations fail with not started", func() {
			_, err := svc.RegisterMember(context.Background())
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.UpdateCharacterImage(context.Background(), 1, "")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.Stop(context.Background()), ShouldBeNil)
			So(svc.GetStats(context.Background())["started"], ShouldEqual, false)
		})
	})

	Convey("Given a started service", t, func() {
		svc, _ := newService(t, service.WithWorkerCount(2), service.WithQueueSize(10))

		Convey("Then a second start is a no-op and stats are reported", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			stats := svc.GetStats(context.Background())
			So(stats["started"], ShouldEqual, true)
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["levels"], ShouldEqual, progression.MaxLevel)
		})
	})
}

func TestService_Characters(t *testing.T) {
	Convey("Given a started service and a registered member", t, func() {
		ctx := context.Background()
		images := &fakeImages{}
		svc, _ := newService(t, service.WithImageStore(images))
		m, err := svc.RegisterMember(ctx)
		So(err, ShouldBeNil)

		Convey("When the member creates a character", func() {
			c, err := svc.CreateCharacter(ctx, m.ID, createRequest("달리기"))
			So(err, ShouldBeNil)

			Convey("Then it starts at level one with the default image", func() {
				resp, err := svc.GetCharacterResponse(ctx, m.ID)
				So(err, ShouldBeNil)
				So(resp.CharacterID, ShouldEqual, c.ID)
				So(resp.Level, ShouldEqual, 1)
				So(resp.Experience, ShouldEqual, 0)
				So(resp.CharacterImage, ShouldEqual, service.DefaultImage)
				So(*resp.RequiredExp, ShouldEqual, 100)
			})

			Convey("Then the nickname is reported as taken", func() {
				dup, err := svc.CheckNicknameDuplicate(ctx, "달리기")
				So(err, ShouldBeNil)
				So(dup, ShouldBeTrue)

				dup, err = svc.CheckNicknameDuplicate(ctx, "free1")
				So(err, ShouldBeNil)
				So(dup, ShouldBeFalse)
			})

			Convey("Then a second character is rejected", func() {
				_, err := svc.CreateCharacter(ctx, m.ID, createRequest("second"))
				So(errors.Is(err, repository.ErrCharacterExists), ShouldBeTrue)
			})

			Convey("Then another member cannot reuse the nickname", func() {
				m2, _ := svc.RegisterMember(ctx)
				_, err := svc.CreateCharacter(ctx, m2.ID, createRequest("달리기"))
				So(errors.Is(err, nickname.ErrDuplicate), ShouldBeTrue)
			})

			Convey("When the nickname is changed", func() {
				updated, err := svc.UpdateNickname(ctx, m.ID, "sprint")
				So(err, ShouldBeNil)

				Convey("Then the new name is stored and the old one is free", func() {
					So(updated.Nickname, ShouldEqual, "sprint")
					dup, _ := svc.CheckNicknameDuplicate(ctx, "달리기")
					So(dup, ShouldBeFalse)
				})

				Convey("Then keeping the same name succeeds", func() {
					_, err := svc.UpdateNickname(ctx, m.ID, "sprint")
					So(err, ShouldBeNil)
				})
			})

			Convey("When the image is replaced twice", func() {
				_, err := svc.UpdateCharacterImage(ctx, m.ID, "images/one.png")
				So(err, ShouldBeNil)
				images.err = errors.New("storage offline")
				c2, err := svc.UpdateCharacterImage(ctx, m.ID, "images/two.png")

				Convey("Then the default image is kept and the custom one deleted best effort", func() {
					So(err, ShouldBeNil)
					So(c2.Image, ShouldEqual, "images/two.png")
					So(images.deleted, ShouldResemble, []string{"images/one.png"})
				})
			})

			Convey("When the image points at the default file through another URL", func() {
				_, err := svc.UpdateCharacterImage(ctx, m.ID, "https://cdn/x/"+service.DefaultImage)
				So(err, ShouldBeNil)
				_, err = svc.UpdateCharacterImage(ctx, m.ID, "images/three.png")
				So(err, ShouldBeNil)

				Convey("Then the default file is not deleted", func() {
					So(images.deleted, ShouldBeEmpty)
				})
			})

			Convey("When another character uses a file with the same name", func() {
				m2, _ := svc.RegisterMember(ctx)
				_, err := svc.CreateCharacter(ctx, m2.ID, createRequest("other"))
				So(err, ShouldBeNil)
				_, err = svc.UpdateCharacterImage(ctx, m2.ID, "https://cdn/b/shared.png")
				So(err, ShouldBeNil)

				_, err = svc.UpdateCharacterImage(ctx, m.ID, "images/shared.png")
				So(err, ShouldBeNil)
				_, err = svc.UpdateCharacterImage(ctx, m.ID, "images/four.png")
				So(err, ShouldBeNil)

				Convey("Then the shared file is kept until its last user replaces it", func() {
					So(images.deleted, ShouldBeEmpty)

					_, err := svc.UpdateCharacterImage(ctx, m2.ID, "images/five.png")
					So(err, ShouldBeNil)
					So(images.deleted, ShouldResemble, []string{"https://cdn/b/shared.png"})
				})
			})
		})

		Convey("When the nickname is invalid", func() {
			_, err := svc.CreateCharacter(ctx, m.ID, createRequest("x"))

			Convey("Then the nickname error is returned", func() {
				So(errors.Is(err, nickname.ErrLength), ShouldBeTrue)
			})
		})

		Convey("When the body profile is invalid", func() {
			req := createRequest("runner")
			req.Gender = "unknown"
			_, err := svc.CreateCharacter(ctx, m.ID, req)

			Convey("Then a bad request is returned", func() {
				So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
			})
		})

		Convey("When the member is unknown", func() {
			_, err := svc.CreateCharacter(ctx, 9999, createRequest("runner"))
			So(errors.Is(err, repository.ErrMemberNotFound), ShouldBeTrue)
			_, err = svc.GetCharacterByMemberID(ctx, 9999)
			So(errors.Is(err, repository.ErrMemberNotFound), ShouldBeTrue)
		})

		Convey("When the member has no character", func() {
			_, err := svc.GetCharacterByMemberID(ctx, m.ID)
			So(errors.Is(err, repository.ErrCharacterNotFound), ShouldBeTrue)
		})
	})
}

func TestService_AddExperience(t *testing.T) {
	Convey("Given a level one character", t, func() {
		ctx := context.Background()
		svc, _ := newService(t)
		memberID, characterID := newMemberWithCharacter(t, svc, "runner")

		Convey("When it gains exactly the first requirement", func() {
			lu, err := svc.AddExperience(ctx, characterID, 100)

			Convey("Then it levels up once", func() {
				So(err, ShouldBeNil)
				So(lu.HasLeveledUp, ShouldBeTrue)
				So(lu.OldLevel, ShouldEqual, 1)
				So(lu.NewLevel, ShouldEqual, 2)
				resp, _ := svc.GetCharacterResponse(ctx, memberID)
				So(resp.Experience, ShouldEqual, 0)
				So(*resp.RequiredExp, ShouldEqual, 283)
			})
		})

		Convey("When it gains a huge amount", func() {
			lu, err := svc.AddExperience(ctx, characterID, 10_000_000)

			Convey("Then it is clamped at the max level", func() {
				So(err, ShouldBeNil)
				So(lu.NewLevel, ShouldEqual, progression.MaxLevel)
				resp, _ := svc.GetCharacterResponse(ctx, memberID)
				So(resp.Level, ShouldEqual, progression.MaxLevel)
				So(resp.Experience, ShouldEqual, 35355)
				So(resp.RequiredExp, ShouldBeNil)
			})
		})

		Convey("When the gain is negative", func() {
			_, err := svc.AddExperience(ctx, characterID, -1)

			Convey("Then it is a bad request", func() {
				So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
				So(errors.Is(err, progression.ErrInvalidProgress), ShouldBeTrue)
			})
		})

		Convey("When the character is unknown", func() {
			_, err := svc.AddExperience(ctx, 777, 10)
			So(errors.Is(err, repository.ErrCharacterNotFound), ShouldBeTrue)
		})
	})
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.LevelUp
}

func (f *fakePublisher) PublishLevelUp(_ context.Context, lu model.LevelUp) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, lu)
}

func TestService_LevelUpPublisher(t *testing.T) {
	Convey("Given a service with a level-up publisher", t, func() {
		ctx := context.Background()
		pub := &fakePublisher{}
		svc, _ := newService(t, service.WithLevelUpPublisher(pub))
		_, characterID := newMemberWithCharacter(t, svc, "runner")

		Convey("When grants with and without a level change happen", func() {
			_, err := svc.AddExperience(ctx, characterID, 10)
			So(err, ShouldBeNil)
			_, err = svc.AddExperience(ctx, characterID, 150)
			So(err, ShouldBeNil)

			Convey("Then only the level-up is published", func() {
				So(pub.events, ShouldHaveLength, 1)
				So(pub.events[0].CharacterID, ShouldEqual, characterID)
				So(pub.events[0].OldLevel, ShouldEqual, 1)
				So(pub.events[0].NewLevel, ShouldEqual, 2)
			})
		})
	})
}

// interleavingStore runs a hook inside profile updates, after the service has
// read the character and before the store writes the change.
type interleavingStore struct {
	*sqlite.Store
	beforeUpdate func()
}

func (s *interleavingStore) UpdateNickname(ctx context.Context, characterID int64, name string) (model.Character, error) {
	if s.beforeUpdate != nil {
		s.beforeUpdate()
	}
	return s.Store.UpdateNickname(ctx, characterID, name)
}

func (s *interleavingStore) UpdateImage(ctx context.Context, characterID int64, image string) (model.Character, string, error) {
	if s.beforeUpdate != nil {
		s.beforeUpdate()
	}
	return s.Store.UpdateImage(ctx, characterID, image)
}

// assertRankingMatchesStore compares the member's ranking row with the stored character.
func assertRankingMatchesStore(ctx context.Context, svc *service.Service, store *sqlite.Store, memberID int64) {
	stored, err := store.CharacterByMember(ctx, memberID)
	So(err, ShouldBeNil)
	r, err := svc.GetRankings(ctx, memberID)
	So(err, ShouldBeNil)
	So(r.MyRanking.Level, ShouldEqual, stored.Level)
	So(r.MyRanking.Experience, ShouldEqual, stored.Experience)
	So(r.MyRanking.Nickname, ShouldEqual, stored.Nickname)
	So(r.MyRanking.CharacterImage, ShouldEqual, stored.Image)
}

func TestService_RankingFollowsStore(t *testing.T) {
	Convey("Given a service whose profile updates race with a grant", t, func() {
		ctx := context.Background()
		base, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "race.db"))
		So(err, ShouldBeNil)
		store := &interleavingStore{Store: base}
		svc := service.New(store)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() {
			_ = svc.Stop(context.Background())
			_ = base.Close()
		}()
		memberID, characterID := newMemberWithCharacter(t, svc, "racer")

		var once sync.Once
		store.beforeUpdate = func() {
			once.Do(func() {
				_, err := svc.AddExperience(ctx, characterID, 100000)
				So(err, ShouldBeNil)
			})
		}

		Convey("When the image is changed while the grant commits", func() {
			_, err := svc.UpdateCharacterImage(ctx, memberID, "images/race.png")
			So(err, ShouldBeNil)

			Convey("Then the ranking keeps the granted progress", func() {
				assertRankingMatchesStore(ctx, svc, base, memberID)
				r, _ := svc.GetRankings(ctx, memberID)
				So(r.MyRanking.Level, ShouldBeGreaterThan, 1)
			})
		})

		Convey("When the nickname is changed while the grant commits", func() {
			_, err := svc.UpdateNickname(ctx, memberID, "swift")
			So(err, ShouldBeNil)

			Convey("Then the ranking keeps the granted progress and the new name", func() {
				assertRankingMatchesStore(ctx, svc, base, memberID)
			})
		})
	})

	Convey("Given concurrent grants and profile updates on one character", t, func() {
		ctx := context.Background()
		svc, store := newService(t, service.WithWorkerCount(4), service.WithQueueSize(200))
		memberID, characterID := newMemberWithCharacter(t, svc, "mixer")

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 25; i++ {
					_, _ = svc.AddExperience(ctx, characterID, 37+g*11+i)
				}
			}(g)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, _ = svc.UpdateCharacterImage(ctx, memberID, fmt.Sprintf("images/mix-%d.png", i))
				_, _ = svc.UpdateNickname(ctx, memberID, fmt.Sprintf("mix%d", i))
			}
		}()
		wg.Wait()

		Convey("Then the ranking row equals the stored character", func() {
			assertRankingMatchesStore(ctx, svc, store, memberID)
		})
	})
}

func TestService_Rankings(t *testing.T) {
	Convey("Given four characters with different progress", t, func() {
		ctx := context.Background()
		svc, _ := newService(t, service.WithMaxRankingSize(2))

		ids := map[string][2]int64{}
		for _, name := range []string{"alpha", "bravo", "charly", "delta"} {
			m, c := newMemberWithCharacter(t, svc, name)
			ids[name] = [2]int64{m, c}
		}
		_, _ = svc.AddExperience(ctx, ids["alpha"][1], 150) // level 2, 50
		_, _ = svc.AddExperience(ctx, ids["bravo"][1], 150) // level 2, 50
		_, _ = svc.AddExperience(ctx, ids["charly"][1], 500) // level 3, 117

		Convey("When delta asks for rankings", func() {
			list, err := svc.GetRankings(ctx, ids["delta"][0])
			So(err, ShouldBeNil)

			Convey("Then it is last and sees the top two", func() {
				So(list.MyRanking.Rank, ShouldEqual, 4)
				So(len(list.Rankings), ShouldEqual, 2)
				So(list.Rankings[0].Nickname, ShouldEqual, "charly")
				So(list.Rankings[0].Rank, ShouldEqual, 1)
				So(list.Rankings[1].Nickname, ShouldEqual, "alpha")
				So(list.Rankings[1].Rank, ShouldEqual, 2)
			})
		})

		Convey("When bravo asks for rankings", func() {
			list, err := svc.GetRankings(ctx, ids["bravo"][0])
			So(err, ShouldBeNil)

			Convey("Then it shares rank two and is excluded from the list", func() {
				So(list.MyRanking.Rank, ShouldEqual, 2)
				for _, r := range list.Rankings {
					So(r.Nickname, ShouldNotEqual, "bravo")
				}
				So(list.Rankings[1].Nickname, ShouldEqual, "alpha")
				So(list.Rankings[1].Rank, ShouldEqual, 2)
			})
		})
	})

	Convey("Given characters created before a restart", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "restart.db")
		store, err := sqlite.Open(ctx, path)
		So(err, ShouldBeNil)
		defer store.Close()

		first := service.New(store)
		So(first.Start(ctx), ShouldBeNil)
		m, _ := first.RegisterMember(ctx)
		c, err := first.CreateCharacter(ctx, m.ID, createRequest("keeper"))
		So(err, ShouldBeNil)
		_, err = first.AddExperience(ctx, c.ID, 1000)
		So(err, ShouldBeNil)
		So(first.Stop(ctx), ShouldBeNil)

		Convey("When a new service starts on the same store", func() {
			second := service.New(store)
			So(second.Start(ctx), ShouldBeNil)
			defer second.Stop(ctx)

			Convey("Then the ranking index is rebuilt", func() {
				list, err := second.GetRankings(ctx, m.ID)
				So(err, ShouldBeNil)
				So(list.MyRanking.Rank, ShouldEqual, 1)
				So(list.MyRanking.Level, ShouldBeGreaterThan, 1)
			})
		})
	})
}

func TestService_Inventory(t *testing.T) {
	Convey("Given a character with two items", t, func() {
		ctx := context.Background()
		svc, _ := newService(t)
		memberID, _ := newMemberWithCharacter(t, svc, "runner")

		catalog, err := svc.Items(ctx)
		So(err, ShouldBeNil)
		So(len(catalog), ShouldBeGreaterThan, 0)

		a, err := svc.AddItem(ctx, memberID, 1)
		So(err, ShouldBeNil)
		b, err := svc.AddItem(ctx, memberID, 2)
		So(err, ShouldBeNil)

		Convey("When both are sold at the right price", func() {
			resp, err := svc.SellItems(ctx, memberID, types.InventorySellRequest{
				InventoryIDs: []int64{a.ID, b.ID},
				TotalPrice:   a.Item.Price + b.Item.Price,
			})

			Convey("Then the coins are credited and the inventory is empty", func() {
				So(err, ShouldBeNil)
				So(resp.SoldCount, ShouldEqual, 2)
				So(resp.Coin, ShouldEqual, a.Item.Price+b.Item.Price)
				inv, _ := svc.ListInventory(ctx, memberID)
				So(inv, ShouldBeEmpty)
			})
		})

		Convey("When an item is equipped", func() {
			_, err := svc.EquipItem(ctx, memberID, a.ID, true)
			So(err, ShouldBeNil)
			_, err = svc.SellItems(ctx, memberID, types.InventorySellRequest{InventoryIDs: []int64{a.ID}, TotalPrice: a.Item.Price})

			Convey("Then it cannot be sold", func() {
				So(errors.Is(err, repository.ErrItemEquipped), ShouldBeTrue)
			})
		})

		Convey("When the request repeats an id", func() {
			_, err := svc.SellItems(ctx, memberID, types.InventorySellRequest{InventoryIDs: []int64{a.ID, a.ID}, TotalPrice: 2 * a.Item.Price})

			Convey("Then it is a bad request", func() {
				So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
			})
		})

		Convey("When the price is wrong", func() {
			_, err := svc.SellItems(ctx, memberID, types.InventorySellRequest{InventoryIDs: []int64{a.ID}, TotalPrice: 1})
			So(errors.Is(err, repository.ErrPriceMismatch), ShouldBeTrue)
		})
	})
}

func TestService_GameResults(t *testing.T) {
	Convey("Given a character and the async pipeline", t, func() {
		ctx := context.Background()
		svc, store := newService(t, service.WithWorkerCount(4), service.WithQueueSize(100))
		_, characterID := newMemberWithCharacter(t, svc, "runner")

		Convey("When results are submitted, one of them twice", func() {
			for i := 0; i < 10; i++ {
				id, dup, err := svc.SubmitGameResult(ctx, types.GameResultRequest{
					EventID: fmt.Sprintf("run-%d", i), CharacterID: characterID, Exp: 10,
				})
				So(err, ShouldBeNil)
				So(dup, ShouldBeFalse)
				So(id, ShouldEqual, fmt.Sprintf("run-%d", i))
			}
			_, dup, err := svc.SubmitGameResult(ctx, types.GameResultRequest{EventID: "run-3", CharacterID: characterID, Exp: 10})
			So(err, ShouldBeNil)
			So(dup, ShouldBeTrue)

			Convey("Then each distinct result is applied once", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				c, err := store.Character(ctx, characterID)
				So(err, ShouldBeNil)
				So(c.Level, ShouldEqual, 2)
				So(c.Experience, ShouldEqual, 0)
			})
		})

		Convey("When no event id is given", func() {
			id, dup, err := svc.SubmitGameResult(ctx, types.GameResultRequest{CharacterID: characterID, Exp: 1})

			Convey("Then one is generated", func() {
				So(err, ShouldBeNil)
				So(dup, ShouldBeFalse)
				So(len(id), ShouldEqual, 36)
			})
		})

		Convey("When the character is unknown or the request malformed", func() {
			_, _, err := svc.SubmitGameResult(ctx, types.GameResultRequest{CharacterID: 12345, Exp: 1})
			So(errors.Is(err, repository.ErrCharacterNotFound), ShouldBeTrue)
			_, _, err = svc.SubmitGameResult(ctx, types.GameResultRequest{CharacterID: characterID, Exp: -5})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})
	})
}
