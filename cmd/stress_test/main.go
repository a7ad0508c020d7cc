package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rl1809/pizzeria/internal/adapter/handler"
	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/core/service"
)

var (
	httpAddr      = flag.String("http", "http://localhost:8080", "pizzeria HTTP base URL")
	grpcAddr      = flag.String("grpc", "localhost:50051", "pizzeria gRPC address")
	totalSessions = flag.Int("sessions", 50, "concurrent ordering sessions")
	flavorID      = flag.String("flavor", "calabresa", "savory flavor to order")
	watch         = flag.Bool("watch", true, "follow the first order over gRPC until completed")
)

type view struct {
	ID   string `json:"id"`
	Step string `json:"step"`
}

type client struct {
	base string
	http *http.Client
}

func (c *client) call(method, path string, body any, headers map[string]string, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

// fill walks one session through the wizard up to a ready checkout form.
func (c *client) fill(guest string) (string, error) {
	var v view
	if _, err := c.call(http.MethodPost, "/api/sessions", nil, nil, &v); err != nil {
		return "", err
	}
	base := "/api/sessions/" + v.ID
	steps := []struct {
		path string
		body any
	}{
		{"/size", map[string]string{"size": string(domain.SizeM)}},
		{"/flavors/" + *flavorID + "/toggle", nil},
		{"/flavors/confirm", nil},
		{"/sweet/skip", nil},
		{"/skip-to-drinks", nil},
		{"/drinks", map[string]any{}},
		{"/delivery", map[string]string{"deliveryType": string(domain.DeliveryTypeDelivery)}},
		{"/checkout", map[string]string{
			"name": "Stress " + guest, "phone": "11900000000", "address": "Rua Teste, 1", "paymentMethod": "pix",
		}},
	}
	for _, s := range steps {
		code, err := c.call(http.MethodPost, base+s.path, s.body, nil, nil)
		if err != nil {
			return "", err
		}
		if code != http.StatusOK {
			return "", fmt.Errorf("%s: status %d", s.path, code)
		}
	}
	return v.ID, nil
}

func main() {
	flag.Parse()
	c := &client{base: *httpAddr, http: &http.Client{Timeout: 10 * time.Second}}

	// Every session is submitted twice with the same request id; exactly one
	// of each pair must be placed.
	var (
		placed     atomic.Int32
		duplicates atomic.Int32
		failed     atomic.Int32

		mu      sync.Mutex
		numbers = make(map[int64]string)
		first   string
		guestOf string
	)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < *totalSessions; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			guest := fmt.Sprintf("stress-%d", n)
			sid, err := c.fill(guest)
			if err != nil {
				log.Printf("session %d: %v", n, err)
				failed.Add(1)
				return
			}
			headers := map[string]string{"X-Request-ID": uuid.NewString(), "X-Guest-ID": guest}

			var inner sync.WaitGroup
			for i := 0; i < 2; i++ {
				inner.Add(1)
				go func() {
					defer inner.Done()
					var o domain.Order
					code, err := c.call(http.MethodPost, "/api/sessions/"+sid+"/submit", nil, headers, &o)
					switch {
					case err != nil:
						log.Printf("session %d submit: %v", n, err)
						failed.Add(1)
					case code == http.StatusCreated:
						placed.Add(1)
						mu.Lock()
						if prev, ok := numbers[o.Number]; ok {
							log.Printf("FAIL: order number %d issued twice (%s, %s)", o.Number, prev, o.ID)
						}
						numbers[o.Number] = o.ID
						if first == "" {
							first, guestOf = o.ID, guest
						}
						mu.Unlock()
					case code == http.StatusConflict || code == http.StatusUnprocessableEntity:
						// The second submit either hits the idempotency key or
						// finds the session already reset.
						duplicates.Add(1)
					default:
						log.Printf("session %d submit: status %d", n, code)
						failed.Add(1)
					}
				}()
			}
			inner.Wait()
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Sessions:         %d\n", *totalSessions)
	fmt.Printf("Placed:           %d\n", placed.Load())
	fmt.Printf("Rejected repeats: %d\n", duplicates.Load())
	fmt.Printf("Failed:           %d\n", failed.Load())
	fmt.Printf("Unique numbers:   %d\n", len(numbers))
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if int(placed.Load()) == *totalSessions && len(numbers) == *totalSessions && failed.Load() == 0 {
		fmt.Println("PASS: one order per session, every number unique")
	} else {
		fmt.Printf("FAIL: expected %d placed orders with unique numbers\n", *totalSessions)
	}

	if !*watch || first == "" {
		return
	}
	conn, err := grpc.NewClient(*grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to dial grpc: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	var trail []domain.OrderStatus
	ctx = handler.AsCaller(ctx, service.Caller{GuestID: guestOf})
	err = handler.NewTrackingClient(conn).WatchOrder(ctx, &handler.GetOrderRequest{OrderID: first}, func(o domain.Order) {
		trail = append(trail, o.Status)
		fmt.Printf("order %s: %s\n", o.ID, o.Status.Label())
	})
	if err != nil {
		log.Fatalf("watch failed: %v", err)
	}
	fmt.Printf("Status trail:     %v\n", trail)
}
